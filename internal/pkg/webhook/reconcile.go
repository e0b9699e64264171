package webhook

import (
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/app/repository"
)

const (
	// sweepBatchSize bounds one reconciliation pass.
	sweepBatchSize = 100

	// staleAfter is how long an event may sit in a non-terminal status
	// before the sweep assumes its queue signal was lost.
	staleAfter = 5 * time.Minute
)

// Reconciler re-enqueues events whose queue signal got lost: retries whose
// due time passed without a delayed job firing, deliveries acknowledged but
// never enqueued, and claims orphaned by a crashed worker. The ledger is
// the source of truth; the queue is only a signal.
type Reconciler struct {
	events    repository.WebhookEventRepository
	scheduler Scheduler
}

func NewReconciler(events repository.WebhookEventRepository, scheduler Scheduler) *Reconciler {
	return &Reconciler{events: events, scheduler: scheduler}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep() error {
	now := time.Now()
	cutoff := now.Add(-staleAfter)

	// Only pick up retries overdue by the stale window; anything younger is
	// the delayed queue's job and double-enqueueing it would be noise.
	due, err := r.events.ListRetryingDue(cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, event := range due {
		r.enqueue(event.ID, "retry due")
	}

	stale, err := r.events.ListStaleReceived(cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, event := range stale {
		r.enqueue(event.ID, "stale received")
	}

	orphaned, err := r.events.ListStaleProcessing(cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, event := range orphaned {
		// Release the orphaned claim; attempts stay as they were since the
		// crash was not the handler's fault.
		if err := r.events.MarkRetrying(event.ID, event.Attempts, "recovered from stale processing", now); err != nil {
			log.Errorf("[WebhookReconciler] Failed to release event %d: %v", event.ID, err)
			continue
		}
		r.enqueue(event.ID, "stale processing")
	}

	return nil
}

func (r *Reconciler) enqueue(eventID uint, why string) {
	payload := WebhookProcessPayload{EventID: eventID}
	if err := r.scheduler.Enqueue(JobTypeProcess, payload.ToMap()); err != nil {
		log.Errorf("[WebhookReconciler] Failed to enqueue event %d (%s): %v", eventID, why, err)
		return
	}
	log.Infof("[WebhookReconciler] Re-enqueued event %d (%s)", eventID, why)
}
