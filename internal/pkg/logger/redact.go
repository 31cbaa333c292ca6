package logger

import "strings"

// RedactEmail masks an email address for logging, keeping just enough of
// the local part to correlate repeated entries: "taro.yamada@example.co.jp"
// becomes "ta***@example.co.jp". Values without a single "@" are masked
// entirely.
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	local, domain := parts[0], parts[1]
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
