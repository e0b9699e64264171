package upload

import (
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMime sniffs the true content type from the bytes themselves, never
// from filename or client declaration.
func DetectMime(data []byte) string {
	m := mimetype.Detect(data)
	// Strip parameters like "; charset=utf-8" so comparisons stay stable.
	base, _, _ := strings.Cut(m.String(), ";")
	return strings.TrimSpace(base)
}

// MimeMatchesDeclared reports whether the sniffed type agrees with the
// declared one. mimetype knows alias relationships (text/javascript vs
// application/javascript); a plain-text detection also satisfies declared
// script types since script sources are plain text to a sniffer.
func MimeMatchesDeclared(data []byte, declared string) bool {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if declared == "" {
		return false
	}
	detected := mimetype.Detect(data)
	if detected.Is(declared) {
		return true
	}
	if detected.Is("text/plain") {
		switch declared {
		case "text/plain", "text/csv", "text/x-python", "text/x-shellscript",
			"application/x-sh", "application/javascript", "text/javascript":
			return true
		}
	}
	return false
}

// MimeConflictsWithDeclared reports an affirmative mismatch: the sniffer
// identified a concrete type and it is not the declared one. Octet-stream
// detections are inconclusive and do not conflict; those go through with
// the upload row in place so the scan worker's verdict lands in quarantine.
func MimeConflictsWithDeclared(data []byte, declared string) bool {
	if MimeMatchesDeclared(data, declared) {
		return false
	}
	return DetectMime(data) != "application/octet-stream"
}

// HeadLooksAcceptable is the cheap finalize-time cross-check over the first
// bytes: it blocks obviously scriptable content smuggled into binary kinds
// and accepts inconclusive octet-stream detections, leaving the
// authoritative full-content sniff to the scan worker.
func HeadLooksAcceptable(head []byte, policy Policy) bool {
	detected := http.DetectContentType(head)
	base, _, _ := strings.Cut(detected, ";")
	base = strings.TrimSpace(base)

	if strings.HasPrefix(base, "text/html") || strings.HasPrefix(base, "application/xhtml") {
		return false
	}
	if base == "application/octet-stream" {
		// Detection is inconclusive; the scan worker settles it.
		return true
	}
	if policy.Allows(base) {
		return true
	}
	// Script kinds legitimately detect as plain text.
	if strings.HasPrefix(base, "text/plain") {
		for mime, allowed := range policy.AllowedMimes {
			if allowed && strings.HasPrefix(mime, "text/") {
				return true
			}
		}
	}
	return false
}
