package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/lead-refinery/internal/leadnorm"
	"github.com/ignite/lead-refinery/internal/table"
)

func leads(rows [][]string) *table.Table {
	return table.New(
		[]string{leadnorm.ColEmail, leadnorm.ColCompany, leadnorm.ColExhibition, leadnorm.ColTel},
		rows,
	)
}

func TestMergeEmailDedupKeepsNewest(t *testing.T) {
	existing := leads([][]string{
		{"a@example.com", "旧商事", "展2025", "03-0000-0000"},
	})
	incoming := leads([][]string{
		{"a@example.com", "新商事", "展2026", "03-1111-1111"},
	})

	res := Merge(existing, incoming)
	assert.Equal(t, 1, res.EmailDuplicates)
	assert.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "新商事", res.Table.Value(0, leadnorm.ColCompany))
}

func TestMergeEmptyEmailsNeverCollapse(t *testing.T) {
	res := Merge(nil, leads([][]string{
		{"", "会社A", "展A", "03-1111-1111"},
		{"", "会社B", "展B", "03-2222-2222"},
	}))
	assert.Equal(t, 0, res.EmailDuplicates)
	assert.Equal(t, 2, res.Table.Len())
}

func TestMergeCompanyEventDedup(t *testing.T) {
	res := Merge(nil, leads([][]string{
		{"old@example.com", "テスト商事", "食品展", "03-1111-1111"},
		{"new@example.com", "テスト商事", "食品展", "03-2222-2222"},
		{"keep@example.com", "テスト商事", "別の展示会", "03-3333-3333"},
	}))
	assert.Equal(t, 1, res.CompanyEventDups)
	assert.Equal(t, 2, res.Table.Len())
	assert.Equal(t, "new@example.com", res.Table.Value(0, leadnorm.ColEmail))
}

func TestMergeDropsEmptyRows(t *testing.T) {
	res := Merge(nil, leads([][]string{
		{"", "", "展だけ", ""},
		{"a@example.com", "", "", ""},
	}))
	assert.Equal(t, 1, res.EmptyRows)
	assert.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "a@example.com", res.Table.Value(0, leadnorm.ColEmail))
}

func TestMergeUnionsHeaders(t *testing.T) {
	existing := table.New(
		[]string{leadnorm.ColEmail, leadnorm.ColCompany},
		[][]string{{"a@example.com", "会社A"}},
	)
	incoming := table.New(
		[]string{leadnorm.ColEmail, leadnorm.ColCompany, leadnorm.ColTel},
		[][]string{{"b@example.com", "会社B", "03-1111-1111"}},
	)

	res := Merge(existing, incoming)
	assert.True(t, res.Table.HasColumn(leadnorm.ColTel))
	assert.Equal(t, "", res.Table.Value(0, leadnorm.ColTel))
	assert.Equal(t, "03-1111-1111", res.Table.Value(1, leadnorm.ColTel))
}

func TestMergeNilExisting(t *testing.T) {
	res := Merge(nil)
	assert.Equal(t, 0, res.Table.Len())
	assert.Equal(t, leadnorm.RequiredColumns, res.Table.Headers[:len(leadnorm.RequiredColumns)])
}
