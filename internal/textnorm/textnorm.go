// Package textnorm provides the text canonicalization used across the lead
// cleaning pipeline: generic free-text normalization, identifier
// normalization for header/key alias matching, company-name comparison keys,
// and email-domain cleanup.
//
// Every function in this package is total and pure: malformed or empty input
// yields an empty string, never an error. All normalizations are idempotent,
// so a value that has already been normalized passes through unchanged.
package textnorm

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// legalEntityTokens are the corporate-suffix spellings removed when building
// a company comparison key. Matching is done longest-token-first so a token
// that is a substring of a longer one (e.g. "inc" inside "inc.") cannot
// partially match and leave a fragment behind.
var legalEntityTokens = []string{
	"株式会社",
	"（株）",
	"(株)",
	"株)",
	"㈱",
	"有限会社",
	"（有）",
	"(有)",
	"㈲",
	"合名会社",
	"合資会社",
	"合同会社",
	"一般社団法人",
	"一般財団法人",
	"公益社団法人",
	"公益財団法人",
	"学校法人",
	"医療法人",
	"特定非営利活動法人",
	"npo法人",
	"npo",
	"inc.",
	"inc",
	"co., ltd.",
	"co.,ltd.",
	"co ltd",
	"co., limited",
	"llc",
	"g.k.",
	"gk",
	"有限責任事業組合",
}

// companyStripTokens is legalEntityTokens pre-normalized (NFKC + lowercase)
// and ordered longest first, ready for removal from an already-normalized
// company name.
var companyStripTokens = func() []string {
	seen := make(map[string]bool, len(legalEntityTokens))
	tokens := make([]string, 0, len(legalEntityTokens))
	for _, t := range legalEntityTokens {
		n := strings.ToLower(norm.NFKC.String(t))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		tokens = append(tokens, n)
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return len(tokens[i]) > len(tokens[j])
	})
	return tokens
}()

// outerTrimCutset is stripped from both ends of free text before case
// folding: ASCII and full-width quotes plus whitespace.
const outerTrimCutset = " \t\r\n　\"＂'"

// NormalizeText canonicalizes free text for comparison: Unicode NFKC,
// leading/trailing quote and whitespace stripping, lowercase. Returns ""
// for empty input.
func NormalizeText(value string) string {
	if value == "" {
		return ""
	}
	text := norm.NFKC.String(value)
	text = strings.Trim(text, outerTrimCutset)
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizeIdentifier canonicalizes a configuration key or column header for
// alias matching. Separator characters that vary between spreadsheet authors
// (colons, underscores, hyphens, any whitespace including the full-width
// space) are removed entirely.
func NormalizeIdentifier(text string) string {
	if text == "" {
		return ""
	}
	normalized := norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		switch r {
		case ' ', '\t', '\r', '\n', '\v', '\f', '　', ':', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// companyStripRunes are the punctuation, bracket and separator characters
// removed from a normalized company name. Company names are entered with and
// without these across sources, so they carry no signal for matching.
var companyStripRunes = map[rune]bool{
	' ': true, '\t': true, '\r': true, '\n': true, '　': true,
	'・': true, '･': true, '_': true, '-': true,
	'‐': true, '‑': true, '‒': true, '–': true, '—': true, '―': true,
	'(': true, ')': true, '[': true, ']': true, '{': true, '}': true,
	'【': true, '】': true, '『': true, '』': true, '「': true, '」': true,
	'|': true, '｜': true, '\\': true, '/': true,
	'.': true, ',': true, '，': true, '、': true, '。': true,
}

// NormalizeCompany reduces a company name to a comparison key: NormalizeText,
// then removal of every legal-entity suffix token and all punctuation and
// separator characters. The result may be empty when the input consists only
// of suffixes and punctuation; callers must treat an empty key as "cannot
// match anything", never as a wildcard.
func NormalizeCompany(value string) string {
	base := NormalizeText(value)
	if base == "" {
		return ""
	}
	for _, token := range companyStripTokens {
		if strings.Contains(base, token) {
			base = strings.ReplaceAll(base, token, "")
		}
	}
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		if companyStripRunes[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CleanDomain derives a bare lowercase domain from an email fragment or URL:
// an optional "mailto:" prefix, an optional http(s) scheme and a leading "@"
// are stripped, and anything from the first "/", "?" or ":" on (path, query,
// port) is cut. The result never contains "/", "?", ":" or a leading "@".
func CleanDomain(value string) string {
	text := strings.ToLower(strings.TrimSpace(norm.NFKC.String(value)))
	text = strings.TrimPrefix(text, "mailto:")
	if after, ok := strings.CutPrefix(text, "https://"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "http://"); ok {
		text = after
	}
	text = strings.TrimLeft(text, "@")
	if i := strings.IndexAny(text, "/?:"); i >= 0 {
		text = text[:i]
	}
	return text
}

// DomainMatches reports whether candidate is ngDomain itself or one of its
// subdomains. A blocked apex domain covers every subdomain, but a blocked
// subdomain never covers the apex or sibling subdomains, and there is no
// accidental suffix match without the separating dot.
func DomainMatches(candidate, ngDomain string) bool {
	return candidate == ngDomain || strings.HasSuffix(candidate, "."+ngDomain)
}
