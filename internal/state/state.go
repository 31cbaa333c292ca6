// Package state tracks which exhibitor files have already been ingested, so
// the monthly update only downloads and processes new or changed files.
package state

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record describes one processed file.
type Record struct {
	Filename    string    `json:"filename"`
	Hash        string    `json:"hash"`
	ProcessedAt time.Time `json:"processed_date"`
	Rows        int       `json:"rows"`
}

// Store is the processed-file ledger. Get returns nil when the key has
// never been processed.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, key string, rec Record) error
	Reset(ctx context.Context) error
}

// FileKey identifies one file attachment on one Notion item. The same URL
// attached to two items counts as two files.
func FileKey(itemID, fileURL string) string {
	return itemID + "_" + fileURL
}

// ContentHash fingerprints downloaded file content. A re-uploaded file with
// identical bytes is skipped; changed bytes trigger reprocessing.
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Changed reports whether content should be (re)processed given the ledger
// record for its key.
func Changed(rec *Record, contentHash string) bool {
	return rec == nil || rec.Hash != contentHash
}

// FileStore persists the ledger as one JSON file, the whole map rewritten
// on every Put. Fine for the volumes a monthly update sees.
type FileStore struct {
	path string
}

// NewFileStore uses path as the ledger file; the file may not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		// A corrupt ledger means reprocessing everything, which is safe.
		return map[string]Record{}, nil
	}
	return records, nil
}

func (s *FileStore) save(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (*Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *FileStore) Put(_ context.Context, key string, rec Record) error {
	records, err := s.load()
	if err != nil {
		return err
	}
	records[key] = rec
	return s.save(records)
}

func (s *FileStore) Reset(_ context.Context) error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
