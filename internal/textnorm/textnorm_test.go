package textnorm

import (
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Acme", "acme"},
		{"outer whitespace", "  Acme Corp  ", "acme corp"},
		{"ascii quotes", `"Acme"`, "acme"},
		{"single quotes", "'Acme'", "acme"},
		{"fullwidth quotes", "＂Acme＂", "acme"},
		{"fullwidth space", "　テスト　", "テスト"},
		{"fullwidth alnum folds", "ＡＢＣ１２３", "abc123"},
		{"halfwidth kana folds", "ﾃｽﾄ", "テスト"},
		{"mixed case", "ExAmPlE", "example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeText_Idempotent(t *testing.T) {
	inputs := []string{"", "  Acme ", `"ＴＥＳＴ"`, "ﾃｽﾄ株式会社", "a@B.Com", "＊ｗｉｌｄ＊"}
	for _, in := range inputs {
		once := NormalizeText(in)
		if twice := NormalizeText(once); twice != once {
			t.Errorf("NormalizeText not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"出力シート名", "出力シート名"},
		{"output_worksheet", "outputworksheet"},
		{"Output Work-Sheet", "outputworksheet"},
		{"入力　タブ", "入力タブ"},
		{"key: value", "keyvalue"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeIdentifier(tt.input); got != tt.want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeCompany(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"legal suffix stripped", "株式会社テスト", "テスト"},
		{"suffix position irrelevant", "テスト株式会社", "テスト"},
		{"parenthesized kabu", "（株）テスト", "テスト"},
		{"squared kabu ligature", "㈱テスト", "テスト"},
		{"yugen", "有限会社サンプル", "サンプル"},
		{"english suffix", "Acme Inc.", "acme"},
		{"co ltd", "Acme Co., Ltd.", "acme"},
		{"punctuation removed", "エー・ビー（営業部）", "エービー営業部"},
		{"whitespace removed", "A B C", "abc"},
		{"only suffix and punct", "株式会社（・）", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCompany(tt.input); got != tt.want {
				t.Errorf("NormalizeCompany(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeCompany_EquivalentForms(t *testing.T) {
	if NormalizeCompany("株式会社テスト") != NormalizeCompany("テスト") {
		t.Error("suffix-bearing and bare names should normalize to the same key")
	}
	if NormalizeCompany("Acme, Inc.") != NormalizeCompany("ACME") {
		t.Error("english legal suffix should not affect the key")
	}
}

func TestNormalizeCompany_Idempotent(t *testing.T) {
	inputs := []string{"株式会社テスト", "Acme Co., Ltd.", "エー・ビー", ""}
	for _, in := range inputs {
		once := NormalizeCompany(in)
		if twice := NormalizeCompany(once); twice != once {
			t.Errorf("NormalizeCompany not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestCleanDomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare domain", "example.com", "example.com"},
		{"uppercase", "Example.COM", "example.com"},
		{"mailto prefix", "mailto:example.com", "example.com"},
		{"https url", "https://example.com/path?q=1", "example.com"},
		{"http url", "http://example.com", "example.com"},
		{"mailto plus scheme", "mailto:https://example.com", "example.com"},
		{"leading at", "@example.com", "example.com"},
		{"port stripped", "example.com:8080", "example.com"},
		{"query stripped", "example.com?x=1", "example.com"},
		{"fullwidth folds", "ｅｘａｍｐｌｅ．ｃｏｍ", "example.com"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanDomain(tt.input)
			if got != tt.want {
				t.Errorf("CleanDomain(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.ContainsAny(got, "/?:") || strings.HasPrefix(got, "@") {
				t.Errorf("CleanDomain(%q) = %q violates domain invariant", tt.input, got)
			}
		})
	}
}

func TestCleanDomain_Idempotent(t *testing.T) {
	for _, in := range []string{"https://example.com/x", "mailto:a.b.c", "@sub.example.com", ""} {
		once := CleanDomain(in)
		if twice := CleanDomain(once); twice != once {
			t.Errorf("CleanDomain not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestDomainMatches(t *testing.T) {
	tests := []struct {
		candidate string
		ng        string
		want      bool
	}{
		{"example.com", "example.com", true},
		{"sub.example.com", "example.com", true},
		{"a.b.example.com", "example.com", true},
		{"notexample.com", "example.com", false},
		{"example.com", "sub.example.com", false},
		{"example.org", "example.com", false},
	}
	for _, tt := range tests {
		if got := DomainMatches(tt.candidate, tt.ng); got != tt.want {
			t.Errorf("DomainMatches(%q, %q) = %v, want %v", tt.candidate, tt.ng, got, tt.want)
		}
	}
}
