package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/ignite/lead-refinery/internal/pkg/httpretry"
	"github.com/ignite/lead-refinery/internal/table"
)

// Google Sheets and Drive URL shapes that carry a sheet or file ID.
var sheetIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9\-_]+)`),
	regexp.MustCompile(`/file/d/([a-zA-Z0-9\-_]+)`),
	regexp.MustCompile(`[?&]id=([a-zA-Z0-9\-_]+)`),
}

var gidPattern = regexp.MustCompile(`[#&]gid=([0-9]+)`)

// ExtractSheetID pulls the spreadsheet or file ID out of a Google Sheets or
// Drive URL. It returns "" when the URL carries none.
func ExtractSheetID(rawURL string) string {
	for _, p := range sheetIDPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsGoogleSheetURL reports whether the URL points at a Google Sheets or
// Drive document.
func IsGoogleSheetURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Host != "docs.google.com" && u.Host != "drive.google.com" {
		return false
	}
	return ExtractSheetID(rawURL) != ""
}

// CSVExportURL converts a Google Sheets URL to its CSV export endpoint,
// keeping the tab selected by a gid fragment (default tab otherwise). It
// returns "" when no sheet ID can be extracted.
func CSVExportURL(sheetURL string) string {
	id := ExtractSheetID(sheetURL)
	if id == "" {
		return ""
	}
	gid := "0"
	if m := gidPattern.FindStringSubmatch(sheetURL); m != nil {
		gid = m[1]
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", id, gid)
}

// SheetFetcher downloads worksheets through the Google Sheets CSV export
// endpoint. It can only read; runs that need write-back pair it with a
// LocalStore or S3Store sink.
type SheetFetcher struct {
	client httpretry.HTTPDoer
}

// NewSheetFetcher wraps the given client with retries. A nil client gets
// the default retrying HTTP client.
func NewSheetFetcher(client httpretry.HTTPDoer) *SheetFetcher {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 3)
	}
	return &SheetFetcher{client: client}
}

// Worksheet downloads one tab as CSV. The worksheet argument is the tab's
// gid (Google identifies export tabs by gid, not by name).
func (s *SheetFetcher) Worksheet(ctx context.Context, spreadsheetID, worksheet string) (*table.Table, error) {
	gid := worksheet
	if gid == "" {
		gid = "0"
	}
	exportURL := fmt.Sprintf(
		"https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s",
		spreadsheetID, url.QueryEscape(gid))
	return s.FetchCSV(ctx, exportURL)
}

// FetchCSV downloads any CSV URL into a table.
func (s *SheetFetcher) FetchCSV(ctx context.Context, rawURL string) (*table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building sheet request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching sheet: unexpected status %d", resp.StatusCode)
	}
	return table.ReadCSV(resp.Body)
}
