package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "ta***@example.co.jp", RedactEmail("taro.yamada@example.co.jp"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-address"))
	assert.Equal(t, "***@***", RedactEmail("two@at@signs"))
}

func TestRedactFieldByKey(t *testing.T) {
	cases := []struct {
		key, val, want string
	}{
		{"email", "hanako@example.com", "ha***@example.com"},
		{"lead_email", "hanako@example.com", "ha***@example.com"},
		{"lead", "suzuki@example.co.jp", "su***@example.co.jp"},
		{"contact", "info@example.com", "in***@example.com"},
		{"Contact", "info@example.com", "in***@example.com"},
		{"worksheet", "リード一覧", "リード一覧"},
		{"rows", "42", "42"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, redactField(c.key, c.val), "key=%s", c.key)
	}
}

func TestRedactFieldEmbeddedAddress(t *testing.T) {
	got := redactField("error", `duplicate row for taro@example.com in sheet`)
	assert.Equal(t, "duplicate row for ta***@example.com in sheet", got)
	assert.NotContains(t, got, "taro@example.com")
}
