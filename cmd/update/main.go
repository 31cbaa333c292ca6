// Command update runs the monthly lead ingest: pull this month's exhibitor
// files from Notion, normalize them, merge into the master list, and
// optionally mirror the result into Postgres.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/lead-refinery/internal/config"
	"github.com/ignite/lead-refinery/internal/domain"
	"github.com/ignite/lead-refinery/internal/notion"
	"github.com/ignite/lead-refinery/internal/pipeline"
	"github.com/ignite/lead-refinery/internal/pkg/distlock"
	"github.com/ignite/lead-refinery/internal/repository/postgres"
	"github.com/ignite/lead-refinery/internal/source"
	"github.com/ignite/lead-refinery/internal/state"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	force := flag.Bool("force", false, "reprocess every file, ignoring the ledger")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Notion.Enabled {
		log.Fatal("NOTION_API_KEY is not set; the monthly update needs Notion access")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	src, sink, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize worksheet store: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var db *sql.DB
	if cfg.Database.Enabled {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	var lock pipeline.RunLock
	if redisClient != nil || db != nil {
		lock = distlock.NewLock(redisClient, db, "monthly-update", *timeout)
	}

	updater := &pipeline.Updater{
		Notion:            notion.NewClient(cfg.Notion.APIKey, nil),
		State:             buildState(cfg, redisClient),
		Source:            src,
		Sink:              sink,
		Lock:              lock,
		DatabaseID:        cfg.Notion.DatabaseID,
		MergedSpreadsheet: "master",
		MergedWorksheet:   cfg.Update.MergedWorksheet(),
		ForceFullUpdate:   *force || cfg.Update.ForceFullUpdate,
	}

	started := time.Now()
	report, err := updater.Run(ctx, started)
	if err != nil {
		log.Fatalf("Monthly update failed: %v", err)
	}

	if db != nil {
		mirrorToDatabase(ctx, db, src, updater, report)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("Failed to print report: %v", err)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (pipeline.Source, pipeline.Sink, error) {
	if cfg.Storage.Type == "s3" {
		s3store, err := source.NewS3Store(ctx, cfg.Storage.S3Bucket, cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile(), "worksheets")
		if err != nil {
			return nil, nil, err
		}
		return s3store, s3store, nil
	}
	local, err := source.NewLocalStore(cfg.Storage.LocalPath)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}

func buildState(cfg *config.Config, redisClient *redis.Client) state.Store {
	if redisClient != nil {
		return state.NewRedisStore(redisClient)
	}
	return state.NewFileStore(filepath.Join(cfg.Storage.LocalPath, "processed_files.json"))
}

// mirrorToDatabase upserts the merged master list into Postgres and records
// the run. Failures are logged; the CSV master list is the source of truth.
func mirrorToDatabase(ctx context.Context, db *sql.DB, src pipeline.Source, u *pipeline.Updater, report *pipeline.UpdateReport) {
	master, err := src.Worksheet(ctx, u.MergedSpreadsheet, u.MergedWorksheet)
	if err != nil {
		log.Printf("Database mirror skipped: %v", err)
		return
	}

	leads := postgres.LeadsFromTable(master, time.Now())
	imported, failed, err := postgres.NewLeadRepo(db).UpsertBatch(ctx, leads)
	if err != nil {
		log.Printf("Lead upsert failed after %d rows: %v", imported, err)
		return
	}
	log.Printf("Mirrored %d leads to Postgres (%d skipped or failed)", imported, failed)

	run := &domain.Run{
		ID:         report.RunID,
		Kind:       domain.RunKindUpdate,
		Status:     domain.RunCompleted,
		InputRows:  report.FilesProcessed,
		OutputRows: report.FinalRows,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := postgres.NewRunRepo(db).Save(ctx, run); err != nil {
		log.Printf("Run record not saved: %v", err)
	}
}
