// Package leadnorm normalizes raw exhibitor lists into the canonical lead
// schema: header renames, contact-text extraction for email and phone,
// required-column backfill and provenance stamping.
package leadnorm

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/lead-refinery/internal/table"
)

// Canonical column names of the merged lead sheet.
const (
	ColEmail      = "メールアドレス"
	ColExhibition = "展示会名"
	ColContact    = "担当者"
	ColIndustry   = "業界"
	ColTel        = "Tel"
	ColCompany    = "会社名"
	ColWebsite    = "Website"
	ColPostal     = "YuubinBangou"
	ColAddress    = "Address"
	ColFax        = "FAX"

	ColSourceFile  = "ソースファイル"
	ColUpdatedAt   = "更新日時"
	ColProcessedAt = "処理月"
)

// RequiredColumns always exist after normalization, empty when unknown.
var RequiredColumns = []string{ColEmail, ColExhibition, ColContact, ColIndustry, ColTel, ColCompany}

// DefaultContactName fills a blank 担当者 cell so mail merges still address
// someone.
const DefaultContactName = "ご担当者様"

// columnRenames maps known source-header spellings to canonical names.
// Matching is case-insensitive on the trimmed header.
var columnRenames = map[string]string{
	// company
	"会社名": ColCompany, "企業名": ColCompany, "出展社名": ColCompany,
	"出展社": ColCompany, "法人名": ColCompany, "company": ColCompany,
	"社名": ColCompany, "出展企業名": ColCompany, "出展者名": ColCompany,
	"corporate name": ColCompany, "組織名": ColCompany,
	"organization": ColCompany, "団体名": ColCompany,

	// contact person
	"担当者名": ColContact, "氏名": ColContact, "名前": ColContact,
	"担当": ColContact, "担当窓口": ColContact, "責任者": ColContact,
	"ご担当者": ColContact, "contact person": ColContact, "person": ColContact,
	"営業担当": ColContact, "代表者": ColContact, "担当者様": ColContact,
	"お名前": ColContact, "name": ColContact, "連絡担当者": ColContact,

	// email
	"メールアドレス": ColEmail, "メール": ColEmail, "担当者メール": ColEmail,
	"e-mail": ColEmail, "eメール": ColEmail, "email": ColEmail,
	"mail": ColEmail, "e-mailアドレス": ColEmail, "emailアドレス": ColEmail,
	"メアド": ColEmail, "mail address": ColEmail,

	// industry
	"業界名": ColIndustry, "業界": ColIndustry, "業種": ColIndustry,
	"分野": ColIndustry, "industry": ColIndustry, "事業分野": ColIndustry,
	"カテゴリー": ColIndustry, "category": ColIndustry, "部門": ColIndustry,
	"業態": ColIndustry, "sector": ColIndustry, "産業": ColIndustry,

	// exhibition
	"展示会名": ColExhibition, "展覧会": ColExhibition, "展示会": ColExhibition,
	"expo": ColExhibition, "イベント名": ColExhibition, "event": ColExhibition,
	"exhibition": ColExhibition, "show": ColExhibition, "fair": ColExhibition,
	"見本市": ColExhibition, "trade show": ColExhibition, "イベント": ColExhibition,

	// phone
	"電話番号": ColTel, "tel": ColTel, "電話": ColTel, "phone": ColTel,
	"tel_fax": ColTel, "telとfax": ColTel, "telephone": ColTel,
	"phone number": ColTel, "連絡先電話": ColTel, "tel番号": ColTel, "℡": ColTel,

	// website
	"ウェブサイト": ColWebsite, "webサイト": ColWebsite, "hp": ColWebsite,
	"ホームページ": ColWebsite, "url": ColWebsite, "web": ColWebsite,
	"website url": ColWebsite, "ウェブ": ColWebsite, "サイト": ColWebsite,
	"homepage": ColWebsite, "websiteurl": ColWebsite, "webサイトurl": ColWebsite,
	"ウェブサイトurl": ColWebsite, "website": ColWebsite,

	// postal code
	"郵便番号": ColPostal, "〒": ColPostal, "zipコード": ColPostal,
	"zip": ColPostal, "zip code": ColPostal, "postal code": ColPostal,
	"郵便": ColPostal, "ゆうびん番号": ColPostal,

	// address
	"住所": ColAddress, "所在地": ColAddress, "アドレス": ColAddress,
	"本社": ColAddress, "本社所在地": ColAddress, "本社住所": ColAddress,
	"会社住所": ColAddress, "location": ColAddress, "事業所": ColAddress,
	"営業所": ColAddress, "所在": ColAddress, "番地": ColAddress,

	// fax
	"fax番号": ColFax, "fax": ColFax, "ファックス": ColFax,
	"ファクス": ColFax, "facsimile": ColFax,

	// contact blocks stay distinct so extraction can scan them
	"問い合わせ先": "問い合わせ先", "問合せ先": "問い合わせ先",
	"連絡先": "連絡先", "contact": "連絡先", "contact information": "連絡先",
	"連絡先情報": "連絡先",
	"お問い合わせ先": "お問い合わせ先", "お問合せ先": "お問い合わせ先",
}

// contactColumnKeywords mark free-text columns worth scanning for buried
// email addresses and phone numbers.
var contactColumnKeywords = []string{"問い合わせ先", "連絡先", "お問い合わせ先", "Contact", "問合せ先"}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// full-width ＠ and ． also appear in pasted Japanese contact blocks
	emailWidePattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+[@＠][a-zA-Z0-9.\-]+[.．][a-zA-Z]{2,}`)
	emailExact       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:TEL|Tel|tel|電話|℡)[:：]?\s*([0-9\-()\s]+)`),
		regexp.MustCompile(`(?:^|\s)([0-9]{2,4}-[0-9]{2,4}-[0-9]{3,4})`),
		regexp.MustCompile(`(?:^|\s)(\([0-9]{2,4}\)[0-9]{2,4}-?[0-9]{3,4})`),
		regexp.MustCompile(`(?:^|\s)([0-9]{10,11})`),
	}
	nonDigit      = regexp.MustCompile(`[^0-9]`)
	phoneStranger = regexp.MustCompile(`[^\d\-+()]`)

	wideDigits = strings.NewReplacer(
		"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
		"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
		"－", "-", "（", "(", "）", ")",
	)
)

// ExtractEmail pulls the first email address out of free text. Full-width
// ＠ and ． are folded to ASCII and the result is lowercased. No address
// found means "".
func ExtractEmail(text string) string {
	if text == "" {
		return ""
	}
	match := emailPattern.FindString(text)
	if match == "" {
		match = emailWidePattern.FindString(text)
	}
	if match == "" {
		return ""
	}
	match = strings.NewReplacer("＠", "@", "．", ".").Replace(match)
	return strings.ToLower(match)
}

// ExtractPhone pulls the first phone number out of free text. Full-width
// digits and punctuation are folded first; candidates shorter than ten
// digits are rejected.
func ExtractPhone(text string) string {
	if text == "" {
		return ""
	}
	text = wideDigits.Replace(text)
	for _, p := range phonePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if len(nonDigit.ReplaceAllString(candidate, "")) >= 10 {
			return NormalizePhone(candidate)
		}
	}
	return ""
}

// NormalizePhone formats Japanese landline and mobile numbers as 0X-XXXX-XXXX
// or 0XX-XXXX-XXXX. Anything else is returned with stray characters removed.
func NormalizePhone(phone string) string {
	phone = wideDigits.Replace(strings.TrimSpace(phone))
	phone = phoneStranger.ReplaceAllString(phone, "")

	digits := nonDigit.ReplaceAllString(phone, "")
	if len(digits) == 10 && digits[0] == '0' {
		return fmt.Sprintf("%s-%s-%s", digits[:2], digits[2:6], digits[6:])
	}
	if len(digits) == 11 && digits[0] == '0' {
		return fmt.Sprintf("%s-%s-%s", digits[:3], digits[3:7], digits[7:])
	}
	return phone
}

// ValidateEmail lowercases and trims an address and returns it only if it is
// a plausible email; otherwise "". Empty input stays empty.
func ValidateEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	if emailExact.MatchString(email) {
		return email
	}
	return ""
}

// RenameColumns folds known source-header spellings onto the canonical
// schema, case-insensitively.
func RenameColumns(t *table.Table) {
	for _, h := range append([]string(nil), t.Headers...) {
		key := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := columnRenames[key]; ok && canonical != h {
			t.RenameColumn(h, canonical)
		}
	}
}

// Stats counts what Normalize recovered from contact text.
type Stats struct {
	EmailsExtracted int `json:"emails_extracted"`
	PhonesExtracted int `json:"phones_extracted"`
}

// Normalize converts one raw exhibitor table into the canonical lead schema
// in place. filename seeds the exhibition name for rows that lack one and is
// stamped as provenance along with now. It fails only when the email, phone
// and company columns are all entirely empty, which means the sheet carries
// nothing reachable.
func Normalize(t *table.Table, filename string, now time.Time) (Stats, error) {
	var stats Stats

	inferredExhibition := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	RenameColumns(t)

	// Recover emails and phone numbers buried in contact-block columns.
	var contactCols []string
	for _, h := range t.Headers {
		for _, kw := range contactColumnKeywords {
			if strings.Contains(h, kw) {
				contactCols = append(contactCols, h)
				break
			}
		}
	}
	if len(contactCols) > 0 {
		ensureColumn(t, ColEmail)
		ensureColumn(t, ColTel)
		for _, col := range contactCols {
			for r := 0; r < t.Len(); r++ {
				text := t.Value(r, col)
				if t.Value(r, ColEmail) == "" {
					if email := ExtractEmail(text); email != "" {
						t.SetValue(r, ColEmail, email)
						stats.EmailsExtracted++
					}
				}
				if t.Value(r, ColTel) == "" {
					if phone := ExtractPhone(text); phone != "" {
						t.SetValue(r, ColTel, phone)
						stats.PhonesExtracted++
					}
				}
			}
		}
	}

	for _, col := range RequiredColumns {
		ensureColumn(t, col)
	}

	t.TrimColumns(t.Headers)

	for r := 0; r < t.Len(); r++ {
		if t.Value(r, ColExhibition) == "" {
			t.SetValue(r, ColExhibition, inferredExhibition)
		}
		if t.Value(r, ColContact) == "" {
			t.SetValue(r, ColContact, DefaultContactName)
		}
		if tel := t.Value(r, ColTel); tel != "" {
			t.SetValue(r, ColTel, NormalizePhone(tel))
		}
		t.SetValue(r, ColEmail, ValidateEmail(t.Value(r, ColEmail)))
	}

	for _, col := range []string{ColEmail, ColTel, ColCompany} {
		if t.Len() > 0 && columnEmpty(t, col) {
			return stats, fmt.Errorf("leadnorm: column %q is entirely empty in %s", col, filename)
		}
	}

	appendConstant(t, ColSourceFile, filepath.Base(filename))
	appendConstant(t, ColUpdatedAt, now.Format("2006-01-02 15:04:05"))
	appendConstant(t, ColProcessedAt, now.Format("2006-01"))

	return stats, nil
}

func ensureColumn(t *table.Table, name string) {
	if !t.HasColumn(name) {
		t.AppendColumn(name, nil)
	}
}

func columnEmpty(t *table.Table, col string) bool {
	for r := 0; r < t.Len(); r++ {
		if strings.TrimSpace(t.Value(r, col)) != "" {
			return false
		}
	}
	return true
}

func appendConstant(t *table.Table, name, value string) {
	values := make([]string, t.Len())
	for i := range values {
		values[i] = value
	}
	if t.HasColumn(name) {
		for r := 0; r < t.Len(); r++ {
			t.SetValue(r, name, value)
		}
		return
	}
	t.AppendColumn(name, values)
}
