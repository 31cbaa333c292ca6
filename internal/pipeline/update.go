package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/lead-refinery/internal/leadnorm"
	"github.com/ignite/lead-refinery/internal/merge"
	"github.com/ignite/lead-refinery/internal/notion"
	"github.com/ignite/lead-refinery/internal/pkg/logger"
	"github.com/ignite/lead-refinery/internal/source"
	"github.com/ignite/lead-refinery/internal/state"
	"github.com/ignite/lead-refinery/internal/table"
)

// FileLister finds this month's exhibitor files and downloads their bytes.
// *notion.Client satisfies it.
type FileLister interface {
	QueryMonth(ctx context.Context, databaseID string, ref time.Time) ([]notion.Item, error)
	Download(ctx context.Context, fileURL string) ([]byte, error)
}

// ErrUpdateInProgress means another process holds the update lock.
var ErrUpdateInProgress = errors.New("another update run is in progress")

// RunLock serializes update runs across processes. distlock.DistLock
// satisfies it.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Updater ingests new exhibitor files into the merged master list.
type Updater struct {
	Notion     FileLister
	State      state.Store
	Source     Source
	Sink       Sink
	Lock       RunLock // optional
	DatabaseID string

	// The master list lives as one worksheet in the backing store.
	MergedSpreadsheet string
	MergedWorksheet   string

	ForceFullUpdate bool
}

// UpdateReport summarizes one monthly update.
type UpdateReport struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	ItemsFound      int       `json:"items_found"`
	FilesProcessed  int       `json:"files_processed"`
	FilesSkipped    int       `json:"files_skipped"`
	FileErrors      int       `json:"file_errors"`
	EmailsExtracted int       `json:"emails_extracted"`
	PhonesExtracted int       `json:"phones_extracted"`
	Duplicates      int       `json:"duplicates_removed"`
	EmptyRows       int       `json:"empty_rows_removed"`
	FinalRows       int       `json:"final_rows"`
}

// Run executes the monthly update: query Notion for this month's items,
// download files not yet in the ledger, normalize each, then merge
// everything into the master list. File-level failures are logged and
// counted, never fatal.
func (u *Updater) Run(ctx context.Context, now time.Time) (*UpdateReport, error) {
	report := &UpdateReport{RunID: uuid.New().String(), StartedAt: now}

	if u.Lock != nil {
		ok, err := u.Lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring update lock: %w", err)
		}
		if !ok {
			return nil, ErrUpdateInProgress
		}
		defer func() {
			if err := u.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("releasing update lock failed", "error", err.Error())
			}
		}()
	}

	if u.ForceFullUpdate {
		logger.Info("force full update, clearing processed-file ledger", "run_id", report.RunID)
		if err := u.State.Reset(ctx); err != nil {
			return nil, fmt.Errorf("resetting state: %w", err)
		}
	}

	items, err := u.Notion.QueryMonth(ctx, u.DatabaseID, now)
	if err != nil {
		return nil, fmt.Errorf("querying notion: %w", err)
	}
	report.ItemsFound = len(items)
	logger.Info("found exhibitor items for this month",
		"run_id", report.RunID, "items", len(items), "month", now.Format("2006-01"))

	var normalized []*table.Table
	for _, item := range items {
		for _, file := range item.Files {
			ing, skipped, err := u.ingestFile(ctx, item, file, now)
			if err != nil {
				report.FileErrors++
				logger.Error("file ingest failed",
					"run_id", report.RunID, "item", item.ID, "url", file.URL, "error", err.Error())
				continue
			}
			if skipped {
				report.FilesSkipped++
				continue
			}
			normalized = append(normalized, ing.t)
			report.FilesProcessed++
			report.EmailsExtracted += ing.stats.EmailsExtracted
			report.PhonesExtracted += ing.stats.PhonesExtracted
		}
	}

	existing, err := u.Source.Worksheet(ctx, u.MergedSpreadsheet, u.MergedWorksheet)
	if err != nil {
		return nil, fmt.Errorf("loading master list: %w", err)
	}

	res := merge.Merge(existing, normalized...)
	report.Duplicates = res.EmailDuplicates + res.CompanyEventDups
	report.EmptyRows = res.EmptyRows
	report.FinalRows = res.Table.Len()

	if err := u.Sink.WriteWorksheet(ctx, u.MergedSpreadsheet, u.MergedWorksheet, res.Table); err != nil {
		return nil, fmt.Errorf("writing master list: %w", err)
	}

	report.FinishedAt = time.Now()
	logger.Info("monthly update finished",
		"run_id", report.RunID,
		"files_processed", report.FilesProcessed,
		"files_skipped", report.FilesSkipped,
		"file_errors", report.FileErrors,
		"final_rows", report.FinalRows)
	return report, nil
}

type ingested struct {
	t     *table.Table
	stats leadnorm.Stats
}

// ingestFile downloads, dedup-checks and normalizes one attachment.
// skipped is true for already-processed content and unsupported formats.
func (u *Updater) ingestFile(ctx context.Context, item notion.Item, file notion.File, now time.Time) (ingested, bool, error) {
	var none ingested

	downloadURL := file.URL
	filename := file.Name
	if file.External {
		if !source.IsGoogleSheetURL(file.URL) {
			logger.Warn("external file is not a Google Sheet, skipped",
				"item", item.ID, "url", file.URL)
			return none, true, nil
		}
		downloadURL = source.CSVExportURL(file.URL)
		filename = fmt.Sprintf("%s_%s.csv", item.Title, source.ExtractSheetID(file.URL))
	} else if !strings.EqualFold(path.Ext(filename), ".csv") {
		logger.Warn("unsupported file format, skipped", "item", item.ID, "filename", filename)
		return none, true, nil
	}

	key := state.FileKey(item.ID, file.URL)
	rec, err := u.State.Get(ctx, key)
	if err != nil {
		return none, false, err
	}

	content, err := u.Notion.Download(ctx, downloadURL)
	if err != nil {
		return none, false, err
	}

	hash := state.ContentHash(content)
	if !state.Changed(rec, hash) {
		logger.Info("file already processed, skipped", "item", item.ID, "filename", filename)
		return none, true, nil
	}

	t, err := table.ReadCSV(bytes.NewReader(content))
	if err != nil {
		return none, false, fmt.Errorf("parsing %s: %w", filename, err)
	}

	stats, err := leadnorm.Normalize(t, filename, now)
	if err != nil {
		return none, false, err
	}

	if err := u.State.Put(ctx, key, state.Record{
		Filename:    filename,
		Hash:        hash,
		ProcessedAt: now,
		Rows:        t.Len(),
	}); err != nil {
		return none, false, err
	}

	logger.Info("file processed", "item", item.ID, "filename", filename, "rows", t.Len())
	return ingested{t: t, stats: stats}, false, nil
}
