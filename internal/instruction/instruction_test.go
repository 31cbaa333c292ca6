package instruction

import (
	"errors"
	"testing"

	"github.com/ignite/lead-refinery/internal/table"
)

func sheet(rows [][]string) *table.Table {
	return table.New([]string{"項目", "値"}, rows)
}

func TestParse_AliasedKeys(t *testing.T) {
	s, err := Parse(sheet([][]string{
		{"出力シート名", "Sheet2"},
		{"入力タブ", "リスト"},
		{"使用するNGタブ", "共通NG, クライアントNG"},
	}), "指示書")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got, err := s.Require(KeyOutputWorksheet)
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if got != "Sheet2" {
		t.Errorf("output_worksheet = %q, want Sheet2", got)
	}
	if v := s.Optional(KeyInputWorksheet, ""); v != "リスト" {
		t.Errorf("input_worksheet = %q", v)
	}
	tabs := s.List(KeyNGTabs, nil)
	if len(tabs) != 2 || tabs[0] != "共通NG" || tabs[1] != "クライアントNG" {
		t.Errorf("ng_tabs = %v", tabs)
	}
}

func TestParse_SpreadsheetIDSpellings(t *testing.T) {
	// Legacy sheets spell the ID keys with a stray plural s.
	for _, rows := range [][][]string{
		{{"InputSpreadsheetID", "in-1"}, {"OutputSpreadsheetID", "out-1"}},
		{{"InputSpreadsheetsID", "in-1"}, {"OutputSpreadsheetsID", "out-1"}},
	} {
		s, err := Parse(sheet(rows), "指示書")
		if err != nil {
			t.Fatalf("Parse(%v): %v", rows, err)
		}
		if v := s.Optional(KeyInputSpreadsheetID, ""); v != "in-1" {
			t.Errorf("input_spreadsheet_id = %q for %v", v, rows[0][0])
		}
		if v := s.Optional(KeyOutputSpreadsheetID, ""); v != "out-1" {
			t.Errorf("output_spreadsheet_id = %q for %v", v, rows[1][0])
		}
	}
}

func TestParse_UnknownKeysPassThrough(t *testing.T) {
	s, err := Parse(sheet([][]string{{"Custom Setting", "42"}}), "指示書")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v := s.Optional("customsetting", ""); v != "42" {
		t.Errorf("custom key = %q, want 42", v)
	}
}

func TestParse_LastWriteWins(t *testing.T) {
	s, err := Parse(sheet([][]string{
		{"出力シート名", "First"},
		{"出力タブ", "Second"},
	}), "指示書")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v := s.Optional(KeyOutputWorksheet, ""); v != "Second" {
		t.Errorf("got %q, want last write Second", v)
	}
}

func TestParse_HeaderFallback(t *testing.T) {
	// No recognizable header aliases: first column is the key, second the value.
	tbl := table.New([]string{"whatever", "stuff"}, [][]string{{"出力シート名", "Out"}})
	s, err := Parse(tbl, "sheet1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v := s.Optional(KeyOutputWorksheet, ""); v != "Out" {
		t.Errorf("got %q, want Out", v)
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(sheet(nil), "指示書")
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cerr.Source != "指示書" {
		t.Errorf("Source = %q", cerr.Source)
	}
}

func TestRequire_MissingKey(t *testing.T) {
	s, err := Parse(sheet([][]string{{"入力タブ", "x"}}), "指示書")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = s.Require(KeyOutputWorksheet)
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cerr.Key != KeyOutputWorksheet || cerr.Source != "指示書" {
		t.Errorf("error fields = %+v", cerr)
	}
}

func TestParseList(t *testing.T) {
	got := ParseList("a, b;c\nd", nil)
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], want[i])
		}
	}

	if got := ParseList("", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("fallback: got %v", got)
	}
	if got := ParseList("  ", nil); len(got) != 0 {
		t.Errorf("blank raw with nil fallback: got %v", got)
	}
	if got := ParseList("一、二、三", nil); len(got) != 3 || got[2] != "三" {
		t.Errorf("fullwidth comma: got %v", got)
	}
}
