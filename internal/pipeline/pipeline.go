// Package pipeline orchestrates a cleaning run: load the instruction sheet
// and input list, compile the NG blocklist, filter, then decorate the output
// with the duplicate-check and unsubscribe columns.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/lead-refinery/internal/instruction"
	"github.com/ignite/lead-refinery/internal/ngfilter"
	"github.com/ignite/lead-refinery/internal/pkg/logger"
	"github.com/ignite/lead-refinery/internal/table"
)

// Source reads worksheets from a spreadsheet-like backend.
type Source interface {
	Worksheet(ctx context.Context, spreadsheetID, worksheet string) (*table.Table, error)
}

// Sink writes a finished table back to a spreadsheet-like backend.
type Sink interface {
	WriteWorksheet(ctx context.Context, spreadsheetID, worksheet string, t *table.Table) error
}

// Column-candidate and trim defaults, overridable per run from the
// instruction sheet.
var (
	DefaultEmailCandidates = []string{
		"メールアドレス(テキスト)", "メールアドレス", "e-mail", "email", "mail",
	}
	DefaultCompanyCandidates = []string{
		"会社名(テキスト)", "会社名", "企業名", "社名", "company",
	}
	DefaultIndustryCandidates = []string{
		"業界", "業種", "industry", "sector", "category",
	}
	DefaultTrimColumns = []string{
		"メールアドレス", "メールアドレス(テキスト)", "展示会名", "担当者",
		"業界", "業種", "会社名", "会社名(テキスト)",
	}
)

// Output column names.
const (
	DupCheckColumn    = "重複チェック"
	UnsubscribeColumn = "登録解除URL(テキスト)"
)

// Report summarizes one cleaning run. Output holds the final table so
// callers can also save it locally.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	InputRows  int            `json:"input_rows"`
	NGCompany  int            `json:"ng_company"`
	NGEmail    int            `json:"ng_email"`
	NGIndustry int            `json:"ng_industry"`
	OutputRows int            `json:"output_rows"`
	Blocklist  ngfilter.Stats `json:"blocklist"`

	Output *table.Table `json:"-"`
}

// Runner binds the worksheet transport to the cleaning logic. The
// ConfigSpreadsheetID is the fallback for input, output and NG list when
// the instruction sheet does not name one.
type Runner struct {
	Source              Source
	Sink                Sink
	ConfigSpreadsheetID string
}

// Run executes one cleaning run from parsed instruction settings.
func (rn *Runner) Run(ctx context.Context, settings *instruction.Settings) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	inputSpreadsheet := settings.Optional(instruction.KeyInputSpreadsheetID, rn.ConfigSpreadsheetID)
	outputSpreadsheet := settings.Optional(instruction.KeyOutputSpreadsheetID, rn.ConfigSpreadsheetID)
	ngSpreadsheet := settings.Optional(instruction.KeyNGSpreadsheetID, rn.ConfigSpreadsheetID)

	inputWorksheet, err := settings.Require(instruction.KeyInputWorksheet)
	if err != nil {
		return nil, err
	}
	outputWorksheet, err := settings.Require(instruction.KeyOutputWorksheet)
	if err != nil {
		return nil, err
	}
	ngTabsRaw, err := settings.Require(instruction.KeyNGTabs)
	if err != nil {
		return nil, err
	}
	ngTabs := instruction.ParseList(ngTabsRaw, nil)
	if len(ngTabs) == 0 {
		return nil, &instruction.ConfigError{
			Key:    instruction.KeyNGTabs,
			Source: "instruction sheet",
			Reason: "must name at least one NG tab",
		}
	}

	input, err := rn.Source.Worksheet(ctx, inputSpreadsheet, inputWorksheet)
	if err != nil {
		return nil, fmt.Errorf("load input worksheet %q: %w", inputWorksheet, err)
	}

	sheets := make([]ngfilter.Sheet, 0, len(ngTabs))
	for _, tab := range ngTabs {
		t, err := rn.Source.Worksheet(ctx, ngSpreadsheet, tab)
		if err != nil {
			return nil, fmt.Errorf("load NG worksheet %q: %w", tab, err)
		}
		sheets = append(sheets, ngfilter.Sheet{Name: tab, Table: t})
	}

	if err := filter(report, settings, input, sheets); err != nil {
		return nil, err
	}
	return report, rn.write(ctx, outputSpreadsheet, outputWorksheet, report.Output)
}

// Filter runs the cleaning logic over already-loaded tables: trim, detect
// the key columns, compile the blocklist, classify, decorate. The upload
// endpoint uses it directly, without a worksheet backend.
func Filter(settings *instruction.Settings, input *table.Table, sheets []ngfilter.Sheet) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	if err := filter(report, settings, input, sheets); err != nil {
		return nil, err
	}
	return report, nil
}

func filter(report *Report, settings *instruction.Settings, input *table.Table, sheets []ngfilter.Sheet) error {
	report.InputRows = input.Len()

	if input.Len() == 0 {
		logger.Info("input is empty, nothing to filter", "run_id", report.RunID)
		report.Output = input
		report.FinishedAt = time.Now()
		return nil
	}

	input.TrimColumns(settings.List(instruction.KeyTrimColumns, DefaultTrimColumns))

	emailCol, ok := input.FindColumn(settings.List(instruction.KeyEmailCandidates, DefaultEmailCandidates))
	if !ok {
		return &instruction.ConfigError{
			Key:    instruction.KeyEmailCandidates,
			Source: "input worksheet",
			Reason: "email column could not be detected; adjust メール列候補",
		}
	}
	companyCol, ok := input.FindColumn(settings.List(instruction.KeyCompanyCandidates, DefaultCompanyCandidates))
	if !ok {
		return &instruction.ConfigError{
			Key:    instruction.KeyCompanyCandidates,
			Source: "input worksheet",
			Reason: "company column could not be detected; adjust 会社列候補",
		}
	}
	industryCol, hasIndustry := input.FindColumn(settings.List(instruction.KeyIndustryCandidates, DefaultIndustryCandidates))

	blocklist, err := ngfilter.Compile(sheets, settings.List(instruction.KeyIndustryKeywords, nil))
	if err != nil {
		return err
	}
	report.Blocklist = blocklist.Stats()
	logger.Info("compiled NG blocklist",
		"run_id", report.RunID,
		"exact_companies", report.Blocklist.ExactCompanies,
		"contains_companies", report.Blocklist.ContainsCompanies,
		"emails", report.Blocklist.Emails,
		"domains", report.Blocklist.Domains)

	filtered := input.Filter(func(r int) bool {
		industry := ""
		if hasIndustry {
			industry = input.Value(r, industryCol)
		}
		d := blocklist.Classify(input.Value(r, companyCol), input.Value(r, emailCol), industry)
		if d.Company {
			report.NGCompany++
		}
		if d.Email {
			report.NGEmail++
		}
		if d.Industry {
			report.NGIndustry++
		}
		return !d.Matched()
	})
	report.OutputRows = filtered.Len()

	logger.Info("NG filtering finished",
		"run_id", report.RunID,
		"input_rows", report.InputRows,
		"ng_company", report.NGCompany,
		"ng_email", report.NGEmail,
		"ng_industry", report.NGIndustry,
		"output_rows", report.OutputRows)

	filtered.RemoveColumn(DupCheckColumn)
	insertDupCheck(filtered, emailCol)

	unsubscribeBase := settings.Optional(instruction.KeyUnsubscribeBaseURL, "")
	values := make([]string, filtered.Len())
	for r := 0; r < filtered.Len(); r++ {
		values[r] = BuildUnsubscribeURL(unsubscribeBase, filtered.Value(r, emailCol))
	}
	filtered.AppendColumn(UnsubscribeColumn, values)

	report.Output = filtered
	report.FinishedAt = time.Now()
	return nil
}

func (rn *Runner) write(ctx context.Context, spreadsheetID, worksheet string, t *table.Table) error {
	if err := rn.Sink.WriteWorksheet(ctx, spreadsheetID, worksheet, t); err != nil {
		return fmt.Errorf("write output worksheet %q: %w", worksheet, err)
	}
	return nil
}

// insertDupCheck places the duplicate-check column right after the email
// column, as a COUNTIF over the email range from the first data row down to
// the current one. Spreadsheet rows start at 2 because of the header.
func insertDupCheck(t *table.Table, emailCol string) {
	idx := t.ColumnIndex(emailCol)
	if idx < 0 {
		return
	}
	letter := ExcelColumnLetter(idx)
	values := make([]string, t.Len())
	for r := 0; r < t.Len(); r++ {
		row := r + 2
		values[r] = fmt.Sprintf("=COUNTIF($%s$2:$%s$%d,$%s$%d)", letter, letter, row, letter, row)
	}
	t.InsertColumn(idx+1, DupCheckColumn, values)
}

// ExcelColumnLetter converts a zero-based column index to its spreadsheet
// letter (0 -> A, 25 -> Z, 26 -> AA).
func ExcelColumnLetter(idx int) string {
	n := idx + 1
	var b strings.Builder
	for n > 0 {
		n--
		b.WriteByte(byte('A' + n%26))
		n /= 26
	}
	// Bytes were produced least-significant first.
	s := []byte(b.String())
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return string(s)
}

// BuildUnsubscribeURL appends the email to the base URL. Without a base, or
// when the value is not an address, the cell stays empty.
func BuildUnsubscribeURL(baseURL, email string) string {
	if baseURL == "" {
		return ""
	}
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return ""
	}
	return baseURL + email
}
