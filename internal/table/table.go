// Package table provides the in-memory tabular model shared by the lead
// cleaning pipeline: ordered rows of named string fields, with CSV read/write
// and header-based column detection.
package table

import (
	"fmt"
	"strings"

	"github.com/ignite/lead-refinery/internal/textnorm"
)

// Table is an ordered collection of string rows under a unique header row.
// Cell access is by column name; rows are always padded to the header width.
type Table struct {
	Headers []string
	Rows    [][]string

	index map[string]int // header name -> column index
}

// New builds a Table from a raw header row and data rows. Headers are
// de-duplicated ("Email", "Email_2", ...) and blank headers become "Column";
// ragged rows are padded or truncated to the header width.
func New(headers []string, rows [][]string) *Table {
	unique := EnsureUniqueHeaders(headers)
	t := &Table{
		Headers: unique,
		Rows:    make([][]string, 0, len(rows)),
		index:   make(map[string]int, len(unique)),
	}
	for i, h := range unique {
		t.index[h] = i
	}
	for _, row := range rows {
		t.Rows = append(t.Rows, padRow(row, len(unique)))
	}
	return t
}

// EnsureUniqueHeaders trims each header and disambiguates duplicates by
// appending "_2", "_3", ... in order of appearance. Empty headers are
// replaced with "Column".
func EnsureUniqueHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	unique := make([]string, 0, len(headers))
	for _, h := range headers {
		key := strings.TrimSpace(h)
		if key == "" {
			key = "Column"
		}
		count := seen[key]
		name := key
		if count > 0 {
			name = fmt.Sprintf("%s_%d", key, count+1)
		}
		seen[key] = count + 1
		unique = append(unique, name)
	}
	return unique
}

func padRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Value returns the cell at (row, column name), or "" if either is missing.
func (t *Table) Value(row int, col string) string {
	i := t.ColumnIndex(col)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// SetValue overwrites the cell at (row, column name). Unknown columns and
// out-of-range rows are ignored.
func (t *Table) SetValue(row int, col, value string) {
	i := t.ColumnIndex(col)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return
	}
	t.Rows[row][i] = value
}

// AppendColumn adds a column at the end. When values is shorter than the
// table it is padded with "".
func (t *Table) AppendColumn(name string, values []string) {
	t.InsertColumn(len(t.Headers), name, values)
}

// InsertColumn adds a column at the given position, shifting later columns
// right. The name is de-duplicated against existing headers.
func (t *Table) InsertColumn(pos int, name string, values []string) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(t.Headers) {
		pos = len(t.Headers)
	}
	unique := EnsureUniqueHeaders(append(append([]string{}, t.Headers...), name))
	name = unique[len(unique)-1]

	t.Headers = append(t.Headers, "")
	copy(t.Headers[pos+1:], t.Headers[pos:])
	t.Headers[pos] = name

	for r := range t.Rows {
		v := ""
		if r < len(values) {
			v = values[r]
		}
		t.Rows[r] = append(t.Rows[r], "")
		copy(t.Rows[r][pos+1:], t.Rows[r][pos:])
		t.Rows[r][pos] = v
	}
	t.reindex()
}

// RemoveColumn drops the named column if present.
func (t *Table) RemoveColumn(name string) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return
	}
	t.Headers = append(t.Headers[:i], t.Headers[i+1:]...)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r][:i], t.Rows[r][i+1:]...)
	}
	t.reindex()
}

// RenameColumn changes a header in place. No-op when from is absent or to
// already exists.
func (t *Table) RenameColumn(from, to string) {
	i := t.ColumnIndex(from)
	if i < 0 || t.HasColumn(to) {
		return
	}
	t.Headers[i] = to
	t.reindex()
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		t.index[h] = i
	}
}

// Filter returns a new Table containing copies of the rows for which keep
// returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := New(append([]string{}, t.Headers...), nil)
	for r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, append([]string{}, t.Rows[r]...))
		}
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]string{}, row...)
	}
	return New(append([]string{}, t.Headers...), rows)
}

// TrimColumns strips outer whitespace from every cell of the named columns.
// Unknown columns are skipped.
func (t *Table) TrimColumns(columns []string) {
	for _, col := range columns {
		i := t.ColumnIndex(col)
		if i < 0 {
			continue
		}
		for r := range t.Rows {
			t.Rows[r][i] = strings.TrimSpace(t.Rows[r][i])
		}
	}
}

// FindColumn locates the first column whose normalized header matches one of
// the candidate names, either exactly or as a substring of the header. The
// candidates are tried in order, so more specific names should come first.
func (t *Table) FindColumn(candidates []string) (string, bool) {
	normalized := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		normalized[i] = textnorm.NormalizeIdentifier(h)
	}
	for _, cand := range candidates {
		c := textnorm.NormalizeIdentifier(cand)
		if c == "" {
			continue
		}
		for i, colNorm := range normalized {
			if c == colNorm || strings.Contains(colNorm, c) {
				return t.Headers[i], true
			}
		}
	}
	return "", false
}
