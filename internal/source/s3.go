package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ignite/lead-refinery/internal/table"
)

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps worksheets as CSV objects: <prefix>/<spreadsheetID>/<worksheet>.csv.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store loads AWS config and builds an S3-backed worksheet store.
// An empty profile uses the default credential chain (IAM role on ECS).
func NewS3Store(ctx context.Context, bucket, region, profile, prefix string) (*S3Store, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// NewS3StoreWithClient builds a store around an existing client, for tests.
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(spreadsheetID, worksheet string) string {
	return path.Join(s.prefix, spreadsheetID, worksheet+".csv")
}

// Worksheet reads one worksheet object. A missing object is an empty
// worksheet, not an error.
func (s *S3Store) Worksheet(ctx context.Context, spreadsheetID, worksheet string) (*table.Table, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(spreadsheetID, worksheet)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return table.New(nil, nil), nil
		}
		return nil, fmt.Errorf("getting worksheet object from S3: %w", err)
	}
	defer out.Body.Close()
	return table.ReadCSV(out.Body)
}

// WriteWorksheet replaces one worksheet object.
func (s *S3Store) WriteWorksheet(ctx context.Context, spreadsheetID, worksheet string, t *table.Table) error {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return fmt.Errorf("encoding worksheet CSV: %w", err)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(spreadsheetID, worksheet)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("putting worksheet object to S3: %w", err)
	}
	return nil
}
