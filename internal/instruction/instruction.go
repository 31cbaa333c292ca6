// Package instruction parses the operator-maintained instruction sheet — a
// two-column key/value table — into typed settings. Keys are written by hand
// in several languages and spellings, so both the column headers and the keys
// themselves are resolved through alias tables after identifier
// normalization.
package instruction

import (
	"fmt"
	"strings"

	"github.com/ignite/lead-refinery/internal/table"
	"github.com/ignite/lead-refinery/internal/textnorm"
)

// ConfigError reports a missing or unusable piece of run configuration. It
// always names the offending key (when there is one) and the source sheet so
// the operator can fix the right cell.
type ConfigError struct {
	Key    string
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config key %q %s in %q", e.Key, e.Reason, e.Source)
	}
	return fmt.Sprintf("instruction sheet %q: %s", e.Source, e.Reason)
}

// Canonical setting names. Operators write localized spellings; the alias
// table below folds them onto these.
const (
	KeyInputSpreadsheetID  = "input_spreadsheet_id"
	KeyInputWorksheet      = "input_worksheet"
	KeyOutputSpreadsheetID = "output_spreadsheet_id"
	KeyOutputWorksheet     = "output_worksheet"
	KeyOutputFilename      = "output_filename"
	KeyNGSpreadsheetID     = "ng_spreadsheet_id"
	KeyNGTabs              = "ng_tabs"
	KeyIndustryKeywords    = "industry_keywords"
	KeyUnsubscribeBaseURL  = "unsubscribe_base_url"
	KeyTrimColumns         = "trim_columns"
	KeyEmailCandidates     = "email_column_candidates"
	KeyCompanyCandidates   = "company_column_candidates"
	KeyIndustryCandidates  = "industry_column_candidates"
)

// keyAliases maps identifier-normalized instruction keys to canonical
// setting names. Unknown keys pass through normalized but unmapped, so
// forward-compatible custom settings still land in the map.
var keyAliases = map[string]string{
	"入力スプレッドシートid":   KeyInputSpreadsheetID,
	"inputspreadsheetid":   KeyInputSpreadsheetID,
	"inputspreadsheetsid":  KeyInputSpreadsheetID,
	"入力シート名":          KeyInputWorksheet,
	"入力タブ":            KeyInputWorksheet,
	"入力ページ":           KeyInputWorksheet,
	"出力スプレッドシートid":   KeyOutputSpreadsheetID,
	"outputspreadsheetid":  KeyOutputSpreadsheetID,
	"outputspreadsheetsid": KeyOutputSpreadsheetID,
	"出力シート名":          KeyOutputWorksheet,
	"出力タブ":            KeyOutputWorksheet,
	"出力ページ":           KeyOutputWorksheet,
	"出力ファイル名":         KeyOutputFilename,
	"出力ファイル":          KeyOutputFilename,
	"ngリストスプレッドシートid": KeyNGSpreadsheetID,
	"ngスプレッドシートid":    KeyNGSpreadsheetID,
	"ngスプレッドシート":      KeyNGSpreadsheetID,
	"ng使用タブ":          KeyNGTabs,
	"使用するngタブ":        KeyNGTabs,
	"ngタブ":            KeyNGTabs,
	"業界ngキーワード":       KeyIndustryKeywords,
	"業界キーワード":         KeyIndustryKeywords,
	"解除urlベース":        KeyUnsubscribeBaseURL,
	"解除url":           KeyUnsubscribeBaseURL,
	"トリム対象列":          KeyTrimColumns,
	"メール列候補":          KeyEmailCandidates,
	"会社列候補":           KeyCompanyCandidates,
	"業界列候補":           KeyIndustryCandidates,
}

// Header spellings that identify the key and value columns of the
// instruction sheet. When neither matches, the first and second columns are
// assumed.
var (
	keyColumnAliases   = []string{"項目", "item", "key", "設定", "name"}
	valueColumnAliases = []string{"値", "value", "内容", "設定値"}
)

// canonicalByNorm lets operators write the canonical English names too, in
// any spacing or casing.
var canonicalByNorm = func() map[string]string {
	keys := []string{
		KeyInputSpreadsheetID, KeyInputWorksheet, KeyOutputSpreadsheetID,
		KeyOutputWorksheet, KeyOutputFilename, KeyNGSpreadsheetID,
		KeyNGTabs, KeyIndustryKeywords, KeyUnsubscribeBaseURL,
		KeyTrimColumns, KeyEmailCandidates, KeyCompanyCandidates,
		KeyIndustryCandidates,
	}
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[textnorm.NormalizeIdentifier(k)] = k
	}
	return m
}()

// Settings is the parsed instruction sheet: canonical key -> trimmed value.
// Later rows with the same canonical key overwrite earlier ones.
type Settings struct {
	source string
	values map[string]string
}

// Parse reads a key/value instruction table. It returns a ConfigError when
// the table is empty or yields no key/value pairs.
func Parse(t *table.Table, source string) (*Settings, error) {
	if t == nil || t.Len() == 0 {
		return nil, &ConfigError{Source: source, Reason: "is empty; populate it from the template"}
	}

	keyCol := matchColumn(t, keyColumnAliases, 0)
	valueCol := matchColumn(t, valueColumnAliases, 1)

	values := make(map[string]string)
	for r := 0; r < t.Len(); r++ {
		rawKey := strings.TrimSpace(t.Value(r, keyCol))
		if rawKey == "" {
			continue
		}
		key := textnorm.NormalizeIdentifier(rawKey)
		if canonical, ok := keyAliases[key]; ok {
			key = canonical
		} else if canonical, ok := canonicalByNorm[key]; ok {
			key = canonical
		}
		values[key] = strings.TrimSpace(t.Value(r, valueCol))
	}

	if len(values) == 0 {
		return nil, &ConfigError{Source: source, Reason: "contains no key/value pairs"}
	}
	return &Settings{source: source, values: values}, nil
}

// matchColumn returns the header whose normalized form is exactly one of the
// aliases, falling back to the column at fallbackIdx (clamped to the table).
func matchColumn(t *table.Table, aliases []string, fallbackIdx int) string {
	want := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		want[textnorm.NormalizeIdentifier(a)] = true
	}
	for _, h := range t.Headers {
		if want[textnorm.NormalizeIdentifier(h)] {
			return h
		}
	}
	if fallbackIdx >= len(t.Headers) {
		fallbackIdx = len(t.Headers) - 1
	}
	if fallbackIdx < 0 {
		return ""
	}
	return t.Headers[fallbackIdx]
}

// Source returns the sheet name the settings were parsed from.
func (s *Settings) Source() string { return s.source }

// Require returns the trimmed value for key, or a ConfigError naming the key
// and source sheet when the value is missing or empty.
func (s *Settings) Require(key string) (string, error) {
	val := strings.TrimSpace(s.values[key])
	if val == "" {
		return "", &ConfigError{Key: key, Source: s.source, Reason: "is required"}
	}
	return val, nil
}

// Optional returns the trimmed value for key, or def when missing or empty.
// It never fails.
func (s *Settings) Optional(key, def string) string {
	if val := strings.TrimSpace(s.values[key]); val != "" {
		return val
	}
	return def
}

// List parses the list-valued setting at key via ParseList.
func (s *Settings) List(key string, fallback []string) []string {
	return ParseList(s.values[key], fallback)
}

// ParseList splits a raw setting on newlines, commas, semicolons and the
// full-width comma, trimming fragments and discarding empties. An empty raw
// value yields a copy of fallback (nil fallback yields an empty list).
func ParseList(raw string, fallback []string) []string {
	if strings.TrimSpace(raw) != "" {
		parts := strings.FieldsFunc(raw, func(r rune) bool {
			return r == '\n' || r == ',' || r == ';' || r == '、'
		})
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return append([]string{}, fallback...)
}
