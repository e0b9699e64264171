package scanner

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/mkoberg/signalmarket/internal/pkg/quarantine"
)

// maxDecompressionRatio is the total-uncompressed to archive-size ratio
// above which an archive is treated as a decompression bomb.
const maxDecompressionRatio = 100

// executableExtensions inside an archive that have no business in a
// product asset bundle.
var executableExtensions = map[string]bool{
	".exe": true, ".dll": true, ".msi": true, ".scr": true,
	".bat": true, ".cmd": true, ".com": true, ".ps1": true,
	".so": true, ".dylib": true,
}

// ArchiveInspector walks zip archives without extracting them, flagging
// path traversal entries, bundled executables and decompression bombs.
type ArchiveInspector struct{}

func NewArchiveInspector() *ArchiveInspector {
	return &ArchiveInspector{}
}

func (a *ArchiveInspector) Name() string { return "archive" }

func (a *ArchiveInspector) Handles(detectedMime string) bool {
	return detectedMime == "application/zip"
}

func (a *ArchiveInspector) Inspect(data []byte) []Finding {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return []Finding{{
			Rule:    "archive-unreadable",
			Detail:  fmt.Sprintf("archive could not be read: %v", err),
			Verdict: string(quarantine.VerdictSuspicious),
		}}
	}

	var findings []Finding
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64

		name := f.Name
		if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || path.IsAbs(name) {
			findings = append(findings, Finding{
				Rule:    "archive-path-traversal",
				Detail:  fmt.Sprintf("archive entry %q escapes the extraction root", name),
				Verdict: string(quarantine.VerdictMalicious),
			})
			continue
		}

		ext := strings.ToLower(path.Ext(name))
		if executableExtensions[ext] {
			findings = append(findings, Finding{
				Rule:    "archive-executable",
				Detail:  fmt.Sprintf("archive contains executable entry %q", name),
				Verdict: string(quarantine.VerdictMalicious),
			})
		}
	}

	if len(data) > 0 && totalUncompressed/uint64(len(data)) > maxDecompressionRatio {
		findings = append(findings, Finding{
			Rule:    "archive-bomb",
			Detail:  fmt.Sprintf("archive expands %dx beyond its stored size", totalUncompressed/uint64(len(data))),
			Verdict: string(quarantine.VerdictMalicious),
		})
	}

	return findings
}
