// Package ngfilter implements the NG (blocklist) matching engine for
// exhibition lead lists. Operator-maintained NG sheets are compiled once into
// an immutable Blocklist; each lead row is then classified against it by
// company name, email address/domain and industry keyword.
//
// The compiled Blocklist owns no mutable state and may be shared freely
// across goroutines.
package ngfilter

import (
	"strings"

	"github.com/ignite/lead-refinery/internal/instruction"
	"github.com/ignite/lead-refinery/internal/pkg/logger"
	"github.com/ignite/lead-refinery/internal/table"
	"github.com/ignite/lead-refinery/internal/textnorm"
)

// Category is the closed set of NG entry kinds. Raw sheet labels are folded
// onto it once, at compile time; nothing downstream dispatches on strings.
type Category string

const (
	CategoryCompany       Category = "company"
	CategoryEmailOrDomain Category = "email_or_domain"
)

// Entry is one configured blocklist rule, as read from an NG sheet row.
type Entry struct {
	Category   Category
	RawValue   string
	IsContains bool
	Enabled    bool
}

// Sheet is one NG worksheet: its operator-visible name plus its rows.
type Sheet struct {
	Name  string
	Table *table.Table
}

// Blocklist is the compiled, immutable form of one or more NG sheets plus
// the industry keyword list. Empty normalized values are dropped at compile
// time, so no collection ever contains an empty key.
type Blocklist struct {
	ExactCompanies    map[string]bool
	ContainsCompanies []string
	Emails            map[string]bool
	Domains           map[string]bool
	IndustryKeywords  []string
}

// Stats summarizes a compiled blocklist for run reports.
type Stats struct {
	ExactCompanies    int `json:"exact_companies"`
	ContainsCompanies int `json:"contains_companies"`
	Emails            int `json:"emails"`
	Domains           int `json:"domains"`
	IndustryKeywords  int `json:"industry_keywords"`
}

// Stats returns entry counts per collection.
func (b *Blocklist) Stats() Stats {
	return Stats{
		ExactCompanies:    len(b.ExactCompanies),
		ContainsCompanies: len(b.ContainsCompanies),
		Emails:            len(b.Emails),
		Domains:           len(b.Domains),
		IndustryKeywords:  len(b.IndustryKeywords),
	}
}

// Column aliases for NG sheets. Any column not matching one of these is
// ignored.
var (
	categoryColumnAliases = []string{"種別", "分類", "type", "カテゴリ"}
	valueColumnAliases    = []string{"値", "value", "ng", "対象", "項目"}
	enabledColumnAliases  = []string{"使用", "enabled", "use", "有効"}
)

// Sheet labels that resolve to each category, compared after identifier
// normalization.
var (
	companyCategoryTokens = []string{"会社名", "企業", "company"}
	emailCategoryTokens   = []string{"メールアドレス", "メールアドレス・ドメイン", "メール", "ドメイン", "email", "mail"}
)

// truthyTokens are the values of an enabled column that mean "use this row".
// Anything else, including blank, disables the row.
var truthyTokens = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true, "on": true,
	"有効": true, "使用": true, "use": true,
}

// Truthy reports whether an enabled-column value marks a row as active.
func Truthy(value string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(value))]
}

// wildcard markers accepted around a contains-match value.
func isWildcardMarker(r rune) bool { return r == '*' || r == '＊' }

// StripWildcard removes the wildcard wrapper from a raw NG value. The
// wrapper counts only when both the first and last character are markers;
// a lone leading or trailing marker is kept as literal text.
func StripWildcard(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	runes := []rune(text)
	if len(runes) >= 2 && isWildcardMarker(runes[0]) && isWildcardMarker(runes[len(runes)-1]) {
		return strings.TrimSpace(string(runes[1 : len(runes)-1])), true
	}
	return text, false
}

// classifyCategory folds a raw sheet label onto the closed Category enum.
func classifyCategory(raw string) (Category, bool) {
	norm := textnorm.NormalizeIdentifier(raw)
	for _, t := range companyCategoryTokens {
		if norm == textnorm.NormalizeIdentifier(t) {
			return CategoryCompany, true
		}
	}
	for _, t := range emailCategoryTokens {
		if norm == textnorm.NormalizeIdentifier(t) {
			return CategoryEmailOrDomain, true
		}
	}
	return "", false
}

// Compile builds a Blocklist from the given NG sheets and raw industry
// keywords. Compiling with zero sheets is a configuration error; a sheet
// that is merely empty is not. Row-level anomalies (unknown category, blank
// category or value) are skipped with a warning and never abort the build.
func Compile(sheets []Sheet, industryKeywords []string) (*Blocklist, error) {
	if len(sheets) == 0 {
		return nil, &instruction.ConfigError{
			Key:    instruction.KeyNGTabs,
			Source: "NG list",
			Reason: "must name at least one NG sheet",
		}
	}

	b := &Blocklist{
		ExactCompanies: make(map[string]bool),
		Emails:         make(map[string]bool),
		Domains:        make(map[string]bool),
	}

	for _, kw := range industryKeywords {
		if n := textnorm.NormalizeText(kw); n != "" {
			b.IndustryKeywords = append(b.IndustryKeywords, n)
		}
	}

	for _, sheet := range sheets {
		b.addSheet(sheet)
	}
	return b, nil
}

func (b *Blocklist) addSheet(sheet Sheet) {
	t := sheet.Table
	if t == nil || t.Len() == 0 {
		return
	}

	categoryCol := matchColumn(t, categoryColumnAliases, 0)
	valueCol := matchColumn(t, valueColumnAliases, 1)
	if categoryCol == valueCol && len(t.Headers) > 1 {
		valueCol = t.Headers[1]
	}
	enabledCol := ""
	if col, ok := matchColumnStrict(t, enabledColumnAliases); ok {
		enabledCol = col
	}

	for r := 0; r < t.Len(); r++ {
		if enabledCol != "" && !Truthy(t.Value(r, enabledCol)) {
			continue
		}
		rawCategory := strings.TrimSpace(t.Value(r, categoryCol))
		rawValue := strings.TrimSpace(t.Value(r, valueCol))
		if rawCategory == "" || rawValue == "" {
			continue
		}

		category, ok := classifyCategory(rawCategory)
		if !ok {
			logger.Warn("unknown NG category, row skipped",
				"category", rawCategory, "sheet", sheet.Name)
			continue
		}
		b.add(Entry{Category: category, RawValue: rawValue, Enabled: true})
	}
}

// add compiles a single enabled entry into the lookup collections.
func (b *Blocklist) add(e Entry) {
	cleaned, isContains := StripWildcard(e.RawValue)

	switch e.Category {
	case CategoryCompany:
		key := textnorm.NormalizeCompany(cleaned)
		if key == "" {
			return
		}
		if isContains {
			b.ContainsCompanies = append(b.ContainsCompanies, key)
		} else {
			b.ExactCompanies[key] = true
		}
	case CategoryEmailOrDomain:
		// The wildcard wrapper is accepted here but carries no meaning.
		norm := textnorm.NormalizeText(cleaned)
		if norm == "" {
			return
		}
		if strings.Contains(norm, "@") {
			b.Emails[norm] = true
		} else if domain := textnorm.CleanDomain(norm); domain != "" {
			b.Domains[domain] = true
		}
	}
}

func matchColumn(t *table.Table, aliases []string, fallbackIdx int) string {
	if col, ok := matchColumnStrict(t, aliases); ok {
		return col
	}
	if fallbackIdx >= len(t.Headers) {
		fallbackIdx = len(t.Headers) - 1
	}
	if fallbackIdx < 0 {
		return ""
	}
	return t.Headers[fallbackIdx]
}

func matchColumnStrict(t *table.Table, aliases []string) (string, bool) {
	want := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		want[textnorm.NormalizeIdentifier(a)] = true
	}
	for _, h := range t.Headers {
		if want[textnorm.NormalizeIdentifier(h)] {
			return h, true
		}
	}
	return "", false
}

// IsNGCompany reports whether the company name matches the blocklist. A name
// that normalizes to an empty key never matches.
func (b *Blocklist) IsNGCompany(name string) bool {
	key := textnorm.NormalizeCompany(name)
	if key == "" {
		return false
	}
	if b.ExactCompanies[key] {
		return true
	}
	for _, token := range b.ContainsCompanies {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

// IsNGEmail reports whether the email address matches the blocklist, either
// as a full address or through its domain (a blocked apex domain also blocks
// subdomains). Values without "@" never match.
func (b *Blocklist) IsNGEmail(email string) bool {
	norm := textnorm.NormalizeText(email)
	at := strings.Index(norm, "@")
	if at < 0 {
		return false
	}
	if b.Emails[norm] {
		return true
	}
	domain := norm[at+1:]
	if b.Domains[domain] {
		return true
	}
	for ng := range b.Domains {
		if textnorm.DomainMatches(domain, ng) {
			return true
		}
	}
	return false
}

// IsNGIndustry reports whether any compiled industry keyword occurs in the
// normalized value. With no keywords or an empty value it never matches.
func (b *Blocklist) IsNGIndustry(value string) bool {
	if len(b.IndustryKeywords) == 0 {
		return false
	}
	norm := textnorm.NormalizeText(value)
	if norm == "" {
		return false
	}
	for _, kw := range b.IndustryKeywords {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}

// Decision is the per-row classification result. The caller ORs the three
// criteria to decide exclusion.
type Decision struct {
	Company  bool `json:"company"`
	Email    bool `json:"email"`
	Industry bool `json:"industry"`
}

// Matched reports whether any criterion matched.
func (d Decision) Matched() bool { return d.Company || d.Email || d.Industry }

// Classify evaluates one row's company, email and industry fields. Inputs
// are read-only; missing data is "no match", never an error.
func (b *Blocklist) Classify(company, email, industry string) Decision {
	return Decision{
		Company:  b.IsNGCompany(company),
		Email:    b.IsNGEmail(email),
		Industry: b.IsNGIndustry(industry),
	}
}
