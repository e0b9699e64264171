package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/audit"
	"github.com/mkoberg/signalmarket/internal/pkg/jobqueue"
	"github.com/mkoberg/signalmarket/internal/pkg/quarantine"
	"github.com/mkoberg/signalmarket/internal/pkg/webhook"
)

const defaultListLimit = 50

// AdminController is the operator surface: ledger inspection, dead-letter
// requeue, quarantine overrides and the audit trail. Every mutating action
// lands in the audit log with the operator actor.
type AdminController struct {
	events   repository.WebhookEventRepository
	uploads  repository.UploadRepository
	audits   repository.AuditLogRepository
	verdicts *quarantine.Applier
	auditor  *audit.Recorder
	queue    *jobqueue.Queue
}

func NewAdminController(
	repos *repository.Repositories,
	verdicts *quarantine.Applier,
	auditor *audit.Recorder,
	queue *jobqueue.Queue,
) *AdminController {
	return &AdminController{
		events:   repos.WebhookEvents,
		uploads:  repos.Uploads,
		audits:   repos.AuditLogs,
		verdicts: verdicts,
		auditor:  auditor,
		queue:    queue,
	}
}

// HandleListWebhookEvents accepts GET /api/v1/admin/webhook-events?status=
func (ac *AdminController) HandleListWebhookEvents(c *fiber.Ctx) error {
	status := c.Query("status", models.WebhookStatusDeadLetter)
	limit := c.QueryInt("limit", defaultListLimit)

	events, err := ac.events.ListByStatus(status, limit)
	if err != nil {
		fiberlog.Errorf("[Admin] Failed to list webhook events: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "listing failed"})
	}

	return c.JSON(fiber.Map{"events": events, "count": len(events)})
}

// HandleGetWebhookEvent accepts GET /api/v1/admin/webhook-events/:id
func (ac *AdminController) HandleGetWebhookEvent(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	event, err := ac.events.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event not found"})
		}
		fiberlog.Errorf("[Admin] Failed to load webhook event %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	return c.JSON(event)
}

// HandleRequeueEvent accepts POST /api/v1/admin/webhook-events/:id/requeue.
// Only dead-lettered events can be requeued; the reset zeroes the attempt
// counter so the event gets a full retry budget again.
func (ac *AdminController) HandleRequeueEvent(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	reset, err := ac.events.ResetForRequeue(uint(id))
	if err != nil {
		fiberlog.Errorf("[Admin] Failed to reset event %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "requeue failed"})
	}
	if !reset {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "event is not dead-lettered"})
	}

	payload := webhook.WebhookProcessPayload{EventID: uint(id)}
	if err := ac.queue.Enqueue(string(jobqueue.JobTypeWebhookProcess), payload.ToMap()); err != nil {
		// The reconciliation sweep picks the event up even if this enqueue
		// fails, so report success with a warning in the logs.
		fiberlog.Errorf("[Admin] Requeue enqueue failed for event %d: %v", id, err)
	}

	ac.auditor.Record(models.AuditActorOperator, audit.EntityWebhookEvent, uint(id), "requeued", "dead-letter requeued by operator")
	return c.JSON(fiber.Map{"status": "requeued", "event_id": id})
}

// HandleListUploads accepts GET /api/v1/admin/uploads?status=
func (ac *AdminController) HandleListUploads(c *fiber.Ctx) error {
	status := c.Query("status", models.UploadStatusQuarantined)
	limit := c.QueryInt("limit", defaultListLimit)

	uploads, err := ac.uploads.ListByStatus(status, limit)
	if err != nil {
		fiberlog.Errorf("[Admin] Failed to list uploads: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "listing failed"})
	}

	return c.JSON(fiber.Map{"uploads": uploads, "count": len(uploads)})
}

// HandleUploadVerdict accepts POST /api/v1/admin/uploads/:uuid/verdict with
// JSON { "verdict": "clean"|"suspicious"|"malicious", "reason": "..." }.
// This is the only path that can release a quarantined upload.
func (ac *AdminController) HandleUploadVerdict(c *fiber.Ctx) error {
	uuid := c.Params("uuid")

	var req struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	verdict := quarantine.Verdict(req.Verdict)
	switch verdict {
	case quarantine.VerdictClean, quarantine.VerdictSuspicious, quarantine.VerdictMalicious:
	default:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unknown verdict"})
	}
	if req.Reason == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "reason is required"})
	}

	up, err := ac.uploads.FindUploadByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "upload not found"})
		}
		fiberlog.Errorf("[Admin] Failed to load upload %s: %v", uuid, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	status, err := ac.verdicts.Apply(up.ID, quarantine.SourceOperator, verdict, req.Reason)
	if err != nil {
		fiberlog.Errorf("[Admin] Failed to apply operator verdict on upload %s: %v", uuid, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verdict failed"})
	}

	return c.JSON(fiber.Map{"upload_uuid": uuid, "status": status})
}

// HandleListAuditLog accepts GET /api/v1/admin/audit/:entityType/:entityID
func (ac *AdminController) HandleListAuditLog(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	switch entityType {
	case audit.EntityWebhookEvent, audit.EntityUpload, audit.EntityOrder:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown entity type"})
	}
	entityID, err := strconv.ParseUint(c.Params("entityID"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid entity id"})
	}

	entries, err := ac.audits.ListByEntity(entityType, uint(entityID))
	if err != nil {
		fiberlog.Errorf("[Admin] Failed to list audit log for %s/%d: %v", entityType, entityID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "listing failed"})
	}

	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

// HandleGetQueueJob accepts GET /api/v1/admin/queue/jobs/:id. Completed
// jobs are removed from redis, so a 404 here usually means success.
func (ac *AdminController) HandleGetQueueJob(c *fiber.Ctx) error {
	jobID := c.Params("id")

	job, err := ac.queue.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
		}
		fiberlog.Errorf("[Admin] Failed to load job %s: %v", jobID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	return c.JSON(job)
}

// HandleQueueStats accepts GET /api/v1/admin/queue/stats
func (ac *AdminController) HandleQueueStats(c *fiber.Ctx) error {
	ctx := c.Context()

	pending, err := ac.queue.GetQueueSize(ctx)
	if err != nil {
		fiberlog.Errorf("[Admin] Failed to read queue size: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats unavailable"})
	}
	processing, _ := ac.queue.GetProcessingSize(ctx)
	delayed, _ := ac.queue.GetDelayedSize(ctx)
	stats, _ := ac.queue.GetJobStats(ctx)

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"delayed":    delayed,
		"stats":      stats,
	})
}
