package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mkoberg/signalmarket/internal/pkg/quarantine"
)

// scriptPattern pairs a named rule with the construct it looks for.
type scriptPattern struct {
	rule    string
	pattern *regexp.Regexp
}

// Patterns target constructs that indicate a script would reach outside
// its own sandbox: spawning shells, self-decoding payloads, or pulling
// remote code at runtime. Plain use of a language stays clean.
var scriptPatterns = []scriptPattern{
	{"script-shell-exec", regexp.MustCompile(`(?i)\b(os\.system|subprocess\.(run|call|Popen)|child_process\.\w+|shell_exec|proc_open|popen)\s*\(`)},
	{"script-eval-decode", regexp.MustCompile(`(?i)\b(eval|exec)\s*\(\s*(base64|atob|b64decode|gzinflate|str_rot13)`)},
	{"script-remote-pipe", regexp.MustCompile(`(?i)\b(curl|wget)\b[^\n]*\|\s*(ba)?sh\b`)},
	{"script-destructive-rm", regexp.MustCompile(`\brm\s+(-[a-zA-Z]*r[a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*r)\s+/(\s|$)`)},
	{"script-encoded-command", regexp.MustCompile(`(?i)powershell[^\n]*-enc(odedcommand)?\b`)},
}

// ScriptInspector flags dangerous constructs in plain-text and script
// content. Findings are suspicious rather than malicious so a human
// settles whether a trading script legitimately shells out.
type ScriptInspector struct{}

func NewScriptInspector() *ScriptInspector {
	return &ScriptInspector{}
}

func (s *ScriptInspector) Name() string { return "script" }

func (s *ScriptInspector) Handles(detectedMime string) bool {
	return strings.HasPrefix(detectedMime, "text/") ||
		detectedMime == "application/javascript" ||
		detectedMime == "application/x-sh"
}

func (s *ScriptInspector) Inspect(data []byte) []Finding {
	content := string(data)
	var findings []Finding
	for _, p := range scriptPatterns {
		if match := p.pattern.FindString(content); match != "" {
			findings = append(findings, Finding{
				Rule:    p.rule,
				Detail:  fmt.Sprintf("dangerous construct %q", strings.TrimSpace(match)),
				Verdict: string(quarantine.VerdictSuspicious),
			})
		}
	}
	return findings
}
