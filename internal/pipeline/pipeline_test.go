package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/lead-refinery/internal/instruction"
	"github.com/ignite/lead-refinery/internal/table"
)

type memBackend struct {
	sheets  map[string]*table.Table // "spreadsheet/worksheet"
	written map[string]*table.Table
}

func newMemBackend() *memBackend {
	return &memBackend{sheets: map[string]*table.Table{}, written: map[string]*table.Table{}}
}

func (m *memBackend) put(spreadsheet, worksheet string, t *table.Table) {
	m.sheets[spreadsheet+"/"+worksheet] = t
}

func (m *memBackend) Worksheet(_ context.Context, spreadsheet, worksheet string) (*table.Table, error) {
	t, ok := m.sheets[spreadsheet+"/"+worksheet]
	if !ok {
		return table.New(nil, nil), nil
	}
	return t, nil
}

func (m *memBackend) WriteWorksheet(_ context.Context, spreadsheet, worksheet string, t *table.Table) error {
	m.written[spreadsheet+"/"+worksheet] = t
	m.sheets[spreadsheet+"/"+worksheet] = t
	return nil
}

func settingsFrom(t *testing.T, pairs [][]string) *instruction.Settings {
	t.Helper()
	s, err := instruction.Parse(table.New([]string{"項目", "値"}, pairs), "test instructions")
	require.NoError(t, err)
	return s
}

func TestRunFiltersAndDecorates(t *testing.T) {
	backend := newMemBackend()
	backend.put("cfg", "リスト", table.New(
		[]string{"会社名", "メールアドレス", "業界", "重複チェック"},
		[][]string{
			{"株式会社クリーン", "keep@example.com", "製造", "stale"},
			{"ブロック商事", "other@example.com", "製造", "stale"},
			{"安全株式会社", "bad@blocked.example", "製造", "stale"},
			{"残る株式会社", "ok@example.com", "賭博関連", "stale"},
		},
	))
	backend.put("cfg", "NGリスト", table.New(
		[]string{"種別", "値"},
		[][]string{
			{"会社名", "ブロック商事"},
			{"ドメイン", "blocked.example"},
		},
	))

	runner := &Runner{Source: backend, Sink: backend, ConfigSpreadsheetID: "cfg"}
	settings := settingsFrom(t, [][]string{
		{"入力シート名", "リスト"},
		{"出力シート名", "出力"},
		{"NGタブ", "NGリスト"},
		{"業界NGキーワード", "賭博"},
		{"解除URLベース", "https://example.com/unsub?mail="},
	})

	report, err := runner.Run(context.Background(), settings)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.InputRows)
	assert.Equal(t, 1, report.NGCompany)
	assert.Equal(t, 1, report.NGEmail)
	assert.Equal(t, 1, report.NGIndustry)
	assert.Equal(t, 1, report.OutputRows)

	out := backend.written["cfg/出力"]
	require.NotNil(t, out)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "keep@example.com", out.Value(0, "メールアドレス"))

	// dup-check sits right after the email column, stale values replaced
	emailIdx := out.ColumnIndex("メールアドレス")
	require.Equal(t, emailIdx+1, out.ColumnIndex(DupCheckColumn))
	assert.Equal(t, "=COUNTIF($B$2:$B$2,$B$2)", out.Value(0, DupCheckColumn))

	assert.Equal(t, "https://example.com/unsub?mail=keep@example.com", out.Value(0, UnsubscribeColumn))
}

func TestRunEmptyInputWritesEmptyOutput(t *testing.T) {
	backend := newMemBackend()
	runner := &Runner{Source: backend, Sink: backend, ConfigSpreadsheetID: "cfg"}
	settings := settingsFrom(t, [][]string{
		{"入力シート名", "リスト"},
		{"出力シート名", "出力"},
		{"NGタブ", "NGリスト"},
	})

	report, err := runner.Run(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, 0, report.InputRows)
	assert.Equal(t, 0, report.OutputRows)
	require.NotNil(t, backend.written["cfg/出力"])
}

func TestRunMissingEmailColumn(t *testing.T) {
	backend := newMemBackend()
	backend.put("cfg", "リスト", table.New(
		[]string{"会社名"}, [][]string{{"テスト商事"}},
	))
	backend.put("cfg", "NGリスト", table.New([]string{"種別", "値"}, nil))

	runner := &Runner{Source: backend, Sink: backend, ConfigSpreadsheetID: "cfg"}
	settings := settingsFrom(t, [][]string{
		{"入力シート名", "リスト"},
		{"出力シート名", "出力"},
		{"NGタブ", "NGリスト"},
	})

	_, err := runner.Run(context.Background(), settings)
	var cfgErr *instruction.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, instruction.KeyEmailCandidates, cfgErr.Key)
}

func TestRunRequiresNGTabs(t *testing.T) {
	backend := newMemBackend()
	runner := &Runner{Source: backend, Sink: backend, ConfigSpreadsheetID: "cfg"}
	settings := settingsFrom(t, [][]string{
		{"入力シート名", "リスト"},
		{"出力シート名", "出力"},
	})

	_, err := runner.Run(context.Background(), settings)
	var cfgErr *instruction.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, instruction.KeyNGTabs, cfgErr.Key)
}

func TestExcelColumnLetter(t *testing.T) {
	tests := []struct {
		idx  int
		want string
	}{
		{0, "A"}, {1, "B"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {701, "ZZ"}, {702, "AAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExcelColumnLetter(tt.idx), tt.idx)
	}
}

func TestBuildUnsubscribeURL(t *testing.T) {
	assert.Equal(t, "https://u.example/?m=a@b.com", BuildUnsubscribeURL("https://u.example/?m=", " a@b.com "))
	assert.Equal(t, "", BuildUnsubscribeURL("", "a@b.com"))
	assert.Equal(t, "", BuildUnsubscribeURL("https://u.example/?m=", "not-an-address"))
}
