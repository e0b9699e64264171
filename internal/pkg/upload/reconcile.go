package upload

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
)

const (
	// sweepBatchSize bounds one sweep pass.
	sweepBatchSize = 100

	// scanStaleAfter is how long an upload may sit in PENDING_SCAN before
	// the sweep assumes its queue signal was lost.
	scanStaleAfter = 5 * time.Minute
)

// Reconciler re-enqueues scan jobs for uploads stuck in PENDING_SCAN. The
// upload row is the source of truth; the queue is only a signal, and a
// finalize whose enqueue was lost must not strand the upload unscanned.
type Reconciler struct {
	uploads   repository.UploadRepository
	scheduler Scheduler
}

func NewReconciler(uploads repository.UploadRepository, scheduler Scheduler) *Reconciler {
	return &Reconciler{uploads: uploads, scheduler: scheduler}
}

// Sweep runs one scan-recovery pass.
func (r *Reconciler) Sweep() error {
	cutoff := time.Now().Add(-scanStaleAfter)

	// Only pick up uploads overdue by the stale window; anything younger is
	// still the finalize enqueue's job and double-scanning it would be noise.
	// The scan worker skips settled uploads, so a duplicate job is harmless.
	stale, err := r.uploads.ListStalePendingScan(cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, up := range stale {
		payload := UploadScanPayload{UploadID: up.ID}
		if err := r.scheduler.Enqueue(JobTypeScan, payload.ToMap()); err != nil {
			log.Errorf("[UploadReconciler] Failed to enqueue scan for upload %d: %v", up.ID, err)
			continue
		}
		log.Infof("[UploadReconciler] Re-enqueued scan for upload %d", up.ID)
	}
	return nil
}

// IntentJanitor expires presigned intents that were never finalized and
// deletes whatever object the client may have parked under the reserved
// storage key. Without the delete, abandoned uploads accumulate unscanned
// bytes in the quarantine area forever.
type IntentJanitor struct {
	uploads repository.UploadRepository
	blobs   blobstore.Store
}

func NewIntentJanitor(uploads repository.UploadRepository, blobs blobstore.Store) *IntentJanitor {
	return &IntentJanitor{uploads: uploads, blobs: blobs}
}

// Sweep runs one expiry pass.
func (j *IntentJanitor) Sweep() error {
	ctx := context.Background()

	expired, err := j.uploads.ListExpiredIntents(time.Now(), sweepBatchSize)
	if err != nil {
		return err
	}
	for _, intent := range expired {
		flipped, err := j.uploads.ExpireIntent(intent.ID)
		if err != nil {
			log.Errorf("[IntentJanitor] Failed to expire intent %d: %v", intent.ID, err)
			continue
		}
		if !flipped {
			// A concurrent finalize consumed the intent first; its object
			// now belongs to an upload row.
			continue
		}
		if err := j.blobs.Delete(ctx, intent.StorageKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			// The intent is already EXPIRED; a leaked object is a cost
			// problem, not a correctness one.
			log.Errorf("[IntentJanitor] Failed to delete orphaned object %s: %v", intent.StorageKey, err)
			continue
		}
		log.Infof("[IntentJanitor] Expired intent %d and cleaned up %s", intent.ID, intent.StorageKey)
	}
	return nil
}
