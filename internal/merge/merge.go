// Package merge folds freshly normalized lead tables into the accumulated
// master list, newest data winning.
package merge

import (
	"strings"

	"github.com/ignite/lead-refinery/internal/leadnorm"
	"github.com/ignite/lead-refinery/internal/table"
)

// Result reports what a merge removed.
type Result struct {
	Table            *table.Table
	EmailDuplicates  int `json:"email_duplicates"`
	CompanyEventDups int `json:"company_event_duplicates"`
	EmptyRows        int `json:"empty_rows"`
}

// Merge appends the new tables after the existing master and deduplicates,
// keeping the last (newest) occurrence: first by email address, then by
// company plus exhibition. Rows with email, phone and company all blank are
// dropped. existing may be nil when no master list exists yet.
func Merge(existing *table.Table, incoming ...*table.Table) Result {
	combined := combine(existing, incoming)

	res := Result{}

	keep := dedupKeepLast(combined, func(r int) string {
		return strings.TrimSpace(combined.Value(r, leadnorm.ColEmail))
	})
	res.EmailDuplicates = combined.Len() - count(keep)

	keyKeep := dedupKeepLast(combined, func(r int) string {
		if !keep[r] {
			return "" // already removed, never a dedup key holder
		}
		company := strings.TrimSpace(combined.Value(r, leadnorm.ColCompany))
		event := strings.TrimSpace(combined.Value(r, leadnorm.ColExhibition))
		if company == "" && event == "" {
			return ""
		}
		return company + "\x00" + event
	})
	for r := range keep {
		if keep[r] && !keyKeep[r] {
			keep[r] = false
			res.CompanyEventDups++
		}
	}

	for r := 0; r < combined.Len(); r++ {
		if keep[r] && rowEmpty(combined, r) {
			keep[r] = false
			res.EmptyRows++
		}
	}

	res.Table = combined.Filter(func(r int) bool { return keep[r] })
	return res
}

func combine(existing *table.Table, incoming []*table.Table) *table.Table {
	tables := make([]*table.Table, 0, len(incoming)+1)
	if existing != nil && existing.Len() > 0 {
		tables = append(tables, existing)
	}
	for _, t := range incoming {
		if t != nil {
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		return table.New(leadnorm.RequiredColumns, nil)
	}

	// Union of headers, first-seen order.
	var headers []string
	seen := map[string]bool{}
	for _, t := range tables {
		for _, h := range t.Headers {
			if !seen[h] {
				seen[h] = true
				headers = append(headers, h)
			}
		}
	}

	out := table.New(headers, nil)
	for _, t := range tables {
		for r := 0; r < t.Len(); r++ {
			row := make([]string, len(headers))
			for i, h := range headers {
				row[i] = t.Value(r, h)
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// dedupKeepLast marks every row as kept except earlier rows sharing a
// non-empty key with a later row.
func dedupKeepLast(t *table.Table, key func(r int) string) []bool {
	keep := make([]bool, t.Len())
	seen := map[string]bool{}
	for r := t.Len() - 1; r >= 0; r-- {
		k := key(r)
		if k == "" || !seen[k] {
			keep[r] = true
			seen[k] = true
		}
	}
	return keep
}

func rowEmpty(t *table.Table, r int) bool {
	for _, col := range []string{leadnorm.ColEmail, leadnorm.ColTel, leadnorm.ColCompany} {
		if strings.TrimSpace(t.Value(r, col)) != "" {
			return false
		}
	}
	return true
}

func count(keep []bool) int {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	return n
}
