package audit

import (
	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
)

// Entity types recorded in the audit trail.
const (
	EntityWebhookEvent = "webhook_event"
	EntityUpload       = "upload"
	EntityOrder        = "order"
)

// Recorder appends audit entries. Writing the trail never fails the
// surrounding operation; a lost entry is logged, not propagated.
type Recorder struct {
	repo repository.AuditLogRepository
}

// NewRecorder creates an audit recorder.
func NewRecorder(repo repository.AuditLogRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Record appends one entry to the trail.
func (r *Recorder) Record(actor, entityType string, entityID uint, action, detail string) {
	if r == nil || r.repo == nil {
		return
	}
	entry := &models.AuditLog{
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Detail:     detail,
	}
	if err := r.repo.Append(entry); err != nil {
		log.Errorf("[Audit] Failed to append %s/%d %s: %v", entityType, entityID, action, err)
	}
}
