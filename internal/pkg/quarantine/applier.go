package quarantine

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/audit"
)

// Applier applies verdicts to uploads through the state machine. Both the
// scan worker and the external AV callback go through here, so their
// verdicts reconcile instead of clobbering each other.
type Applier struct {
	uploads repository.UploadRepository
	auditor *audit.Recorder
}

// NewApplier wires the verdict applier.
func NewApplier(uploads repository.UploadRepository, auditor *audit.Recorder) *Applier {
	return &Applier{uploads: uploads, auditor: auditor}
}

// maxCASRetries bounds the reload loop when concurrent verdicts race.
const maxCASRetries = 3

// Apply runs the transition and persists it with an optimistic
// compare-and-set; on a race it reloads and re-runs the transition so a
// sticky QUARANTINED can never be overwritten. Returns the resulting status.
func (a *Applier) Apply(uploadID uint, source VerdictSource, verdict Verdict, reason string) (string, error) {
	for i := 0; i < maxCASRetries; i++ {
		upload, err := a.uploads.FindUploadByID(uploadID)
		if err != nil {
			return "", fmt.Errorf("failed to load upload %d: %w", uploadID, err)
		}

		next, allowed := Transition(upload.Status, source, verdict)
		if !allowed {
			log.Warnf("[Quarantine] Rejected transition for upload %d: %s -> (%s/%s)",
				uploadID, upload.Status, source, verdict)
			a.auditor.Record(actorFor(source), audit.EntityUpload, uploadID, "transition_rejected",
				fmt.Sprintf("%s -> (%s: %s) %s", upload.Status, source, verdict, reason))
			return upload.Status, nil
		}
		if next == upload.Status {
			return upload.Status, nil
		}

		changed, err := a.uploads.UpdateStatusCAS(uploadID, upload.Status, next, reason)
		if err != nil {
			return "", fmt.Errorf("failed to update upload %d status: %w", uploadID, err)
		}
		if !changed {
			// Lost the race against another verdict source; re-evaluate.
			continue
		}

		log.Infof("[Quarantine] Upload %d: %s -> %s (%s: %s)", uploadID, upload.Status, next, source, reason)
		if next == models.UploadStatusQuarantined || next == models.UploadStatusSuspicious || source == SourceOperator {
			a.auditor.Record(actorFor(source), audit.EntityUpload, uploadID, "status_"+next, reason)
		}
		return next, nil
	}
	return "", fmt.Errorf("upload %d status contended beyond %d retries", uploadID, maxCASRetries)
}

func actorFor(source VerdictSource) string {
	switch source {
	case SourceOperator:
		return models.AuditActorOperator
	case SourceExternalAV:
		return models.AuditActorProvider
	default:
		return models.AuditActorSystem
	}
}
