package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/lead-refinery/internal/api"
	"github.com/ignite/lead-refinery/internal/config"
	"github.com/ignite/lead-refinery/internal/notion"
	"github.com/ignite/lead-refinery/internal/pipeline"
	"github.com/ignite/lead-refinery/internal/pkg/distlock"
	"github.com/ignite/lead-refinery/internal/repository/postgres"
	"github.com/ignite/lead-refinery/internal/source"
	"github.com/ignite/lead-refinery/internal/state"
)

// buildStore picks the worksheet backend from config: S3 in production,
// a local directory everywhere else.
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

// buildState picks the processed-file ledger: Redis when configured,
// otherwise a JSON file next to the worksheet data.
func buildState(cfg *config.Config, redisClient *redis.Client) state.Store {
	if redisClient != nil {
		log.Printf("Using Redis processed-file ledger at %s", cfg.Redis.Addr)
		return state.NewRedisStore(redisClient)
	}
	return state.NewFileStore(filepath.Join(cfg.Storage.LocalPath, "processed_files.json"))
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, sink, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize worksheet store: %v", err)
	}

	runner := &pipeline.Runner{
		Source:              src,
		Sink:                sink,
		ConfigSpreadsheetID: cfg.Sheets.ConfigSpreadsheetID,
	}
	handlers := api.NewHandlers(runner, cfg.Sheets.ConfigWorksheet)

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
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}
		handlers.SetRunStore(postgres.NewRunRepo(db))
		log.Println("Run history persistence enabled")
	}

	if cfg.Notion.Enabled {
		var lock pipeline.RunLock
		if redisClient != nil || db != nil {
			lock = distlock.NewLock(redisClient, db, "monthly-update", 30*time.Minute)
		}
		handlers.SetUpdater(&pipeline.Updater{
			Notion:            notion.NewClient(cfg.Notion.APIKey, nil),
			State:             buildState(cfg, redisClient),
			Source:            src,
			Sink:              sink,
			Lock:              lock,
			DatabaseID:        cfg.Notion.DatabaseID,
			MergedSpreadsheet: "master",
			MergedWorksheet:   cfg.Update.MergedWorksheet(),
			ForceFullUpdate:   cfg.Update.ForceFullUpdate,
		})
		log.Println("Monthly update endpoint enabled")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port),
		Handler: api.SetupRoutes(handlers),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
