package webhook

import (
	"regexp"
	"strings"
)

// previewLimit caps the redacted preview so the ledger row stays small.
const previewLimit = 2048

var (
	emailPattern  = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@([a-z0-9.-]+\.[a-z]{2,})\b`)
	cardPattern   = regexp.MustCompile(`\b\d{13,19}\b`)
	bearerPattern = regexp.MustCompile(`(?i)\b(bearer\s+|sk_live_|sk_test_|pk_live_|api[_-]?key["'\s:=]+)[A-Za-z0-9._\-]{8,}`)
)

// RedactPreview produces the operator-facing snapshot of a raw payload:
// email local parts, card-like digit runs and bearer/API-token-looking
// strings are masked, and the result is truncated. The preview is stored on
// the ledger row so operators can inspect events without decrypting blobs.
func RedactPreview(body []byte) string {
	s := string(body)

	s = emailPattern.ReplaceAllString(s, "***@$1")
	s = cardPattern.ReplaceAllStringFunc(s, func(m string) string {
		// Keep the last four digits, like a receipt does.
		return strings.Repeat("*", len(m)-4) + m[len(m)-4:]
	})
	s = bearerPattern.ReplaceAllString(s, "$1***")

	if len(s) > previewLimit {
		s = s[:previewLimit]
	}
	return s
}
