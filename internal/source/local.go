// Package source provides the worksheet backends a cleaning run reads from
// and writes to: a local CSV directory, Google Sheets CSV export, and S3.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ignite/lead-refinery/internal/table"
)

// LocalStore keeps worksheets as CSV files under root, one directory per
// spreadsheet: <root>/<spreadsheetID>/<worksheet>.csv.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating local store root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(spreadsheetID, worksheet string) string {
	return filepath.Join(s.root, spreadsheetID, worksheet+".csv")
}

// Worksheet reads one worksheet. A missing file is an empty worksheet, not
// an error, matching how an unpopulated spreadsheet tab behaves.
func (s *LocalStore) Worksheet(_ context.Context, spreadsheetID, worksheet string) (*table.Table, error) {
	f, err := os.Open(s.path(spreadsheetID, worksheet))
	if os.IsNotExist(err) {
		return table.New(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening worksheet file: %w", err)
	}
	defer f.Close()
	return table.ReadCSV(f)
}

// WriteWorksheet replaces one worksheet.
func (s *LocalStore) WriteWorksheet(_ context.Context, spreadsheetID, worksheet string, t *table.Table) error {
	path := s.path(spreadsheetID, worksheet)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating spreadsheet directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating worksheet file: %w", err)
	}
	defer f.Close()
	if err := t.WriteCSV(f); err != nil {
		return fmt.Errorf("writing worksheet file: %w", err)
	}
	return nil
}
