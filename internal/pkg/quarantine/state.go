package quarantine

import (
	"github.com/mkoberg/signalmarket/app/models"
)

// VerdictSource identifies who rendered a verdict on an upload.
type VerdictSource string

const (
	SourceScanWorker VerdictSource = "scan_worker"
	SourceExternalAV VerdictSource = "external_av"
	SourceOperator   VerdictSource = "operator"
)

// Verdict is the outcome an inspector or AV engine reports.
type Verdict string

const (
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
)

// Transition computes the next upload status for a verdict. QUARANTINED is
// sticky: once set, only an explicit operator override can leave it. A later
// malicious verdict from an independent source always supersedes an earlier
// approval. Disallowed transitions return allowed=false and the unchanged
// status; callers log them as anomalies.
func Transition(current string, source VerdictSource, verdict Verdict) (string, bool) {
	if current == models.UploadStatusQuarantined {
		// Manual release is the only way out.
		if source == SourceOperator && verdict == VerdictClean {
			return models.UploadStatusScanned, true
		}
		if verdict == VerdictMalicious {
			// Re-confirming quarantine is a no-op, not an anomaly.
			return current, true
		}
		return current, false
	}

	switch verdict {
	case VerdictMalicious:
		return models.UploadStatusQuarantined, true
	case VerdictSuspicious:
		// Suspicion never downgrades an existing quarantine verdict and the
		// scan worker may not override an external AV pass; PENDING_SCAN and
		// SCANNED both move to SUSPICIOUS for operator review.
		return models.UploadStatusSuspicious, true
	case VerdictClean:
		switch current {
		case models.UploadStatusPendingScan:
			return models.UploadStatusScanned, true
		case models.UploadStatusScanned:
			return current, true
		case models.UploadStatusSuspicious:
			// Only an operator may clear suspicion.
			if source == SourceOperator {
				return models.UploadStatusScanned, true
			}
			return current, false
		}
	}

	return current, false
}
