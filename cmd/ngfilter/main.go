// Command ngfilter runs one blocklist cleaning pass from the command line:
// load the instruction worksheet, filter the input list, write the cleaned
// output back.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ignite/lead-refinery/internal/config"
	"github.com/ignite/lead-refinery/internal/domain"
	"github.com/ignite/lead-refinery/internal/instruction"
	"github.com/ignite/lead-refinery/internal/pipeline"
	"github.com/ignite/lead-refinery/internal/repository/postgres"
	"github.com/ignite/lead-refinery/internal/source"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	src, sink, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize worksheet store: %v", err)
	}

	configTable, err := src.Worksheet(ctx, cfg.Sheets.ConfigSpreadsheetID, cfg.Sheets.ConfigWorksheet)
	if err != nil {
		log.Fatalf("Failed to load instruction worksheet: %v", err)
	}
	settings, err := instruction.Parse(configTable, cfg.Sheets.ConfigWorksheet)
	if err != nil {
		log.Fatalf("Instruction sheet unusable: %v", err)
	}

	runner := &pipeline.Runner{
		Source:              src,
		Sink:                sink,
		ConfigSpreadsheetID: cfg.Sheets.ConfigSpreadsheetID,
	}
	report, err := runner.Run(ctx, settings)
	if err != nil {
		log.Fatalf("Cleaning run failed: %v", err)
	}

	// Optional local copy alongside the worksheet output.
	if filename := settings.Optional(instruction.KeyOutputFilename, ""); filename != "" {
		if err := writeLocalCopy(filename, report); err != nil {
			log.Printf("Local copy not written: %v", err)
		} else {
			log.Printf("Local copy written to %s", filename)
		}
	}

	if cfg.Database.Enabled {
		recordRun(ctx, cfg, report)
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

func writeLocalCopy(filename string, report *pipeline.Report) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.Output.WriteCSV(f)
}

func recordRun(ctx context.Context, cfg *config.Config, report *pipeline.Report) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Printf("Run record not saved: %v", err)
		return
	}
	defer db.Close()

	run := &domain.Run{
		ID:         report.RunID,
		Kind:       domain.RunKindNGFilter,
		Status:     domain.RunCompleted,
		InputRows:  report.InputRows,
		OutputRows: report.OutputRows,
		NGCompany:  report.NGCompany,
		NGEmail:    report.NGEmail,
		NGIndustry: report.NGIndustry,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := postgres.NewRunRepo(db).Save(ctx, run); err != nil {
		log.Printf("Run record not saved: %v", err)
	}
}
