package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
	"github.com/mkoberg/signalmarket/internal/pkg/security"
)

// ErrIntentGone marks finalize calls against missing, expired or already
// consumed intents.
var ErrIntentGone = errors.New("upload: intent not available")

// FinalizeRequest is the client's claim that the upload completed.
type FinalizeRequest struct {
	IntentUUID    string `json:"intent_uuid"`
	StorageKey    string `json:"storage_key"`
	Checksum      string `json:"checksum,omitempty"`
	FinalizeToken string `json:"finalize_token"`
}

// Finalizer verifies that claimed uploads actually happened before creating
// the durable Upload record. Object existence, real size and content are
// all established server-side; a client cannot finalize an upload that
// never happened or substitute a different file than was authorized.
type Finalizer struct {
	uploads   repository.UploadRepository
	blobs     blobstore.Store
	scheduler Scheduler
	secret    string
}

// NewFinalizer wires the upload finalizer.
func NewFinalizer(uploads repository.UploadRepository, blobs blobstore.Store, scheduler Scheduler, secret string) *Finalizer {
	return &Finalizer{uploads: uploads, blobs: blobs, scheduler: scheduler, secret: secret}
}

// Finalize verifies the claim and creates the Upload in PENDING_SCAN.
func (f *Finalizer) Finalize(ctx context.Context, req FinalizeRequest) (*models.Upload, error) {
	claims, err := security.VerifyFinalizeToken(req.FinalizeToken, f.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if claims.IntentUUID != req.IntentUUID || claims.StorageKey != req.StorageKey {
		return nil, fmt.Errorf("%w: token does not match request", ErrValidation)
	}

	intent, err := f.uploads.FindIntentByUUID(req.IntentUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentGone
		}
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}
	if !intent.IsConsumable(time.Now()) {
		return nil, ErrIntentGone
	}
	if intent.StorageKey != req.StorageKey {
		return nil, fmt.Errorf("%w: storage key does not match intent", ErrValidation)
	}

	policy, err := PolicyFor(intent.Kind)
	if err != nil {
		return nil, err
	}

	// The object must really exist with the authorized size before any row
	// is created.
	info, err := f.blobs.Head(ctx, intent.StorageKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: no object at storage key", ErrValidation)
		}
		return nil, fmt.Errorf("failed to check uploaded object: %w", err)
	}
	if info.Size != intent.DeclaredSize {
		return nil, fmt.Errorf("%w: object size %d does not match declared %d", ErrValidation, info.Size, intent.DeclaredSize)
	}
	if info.Size > policy.MaxSize || info.Size > claims.MaxBytes {
		return nil, fmt.Errorf("%w: object exceeds authorized size", ErrValidation)
	}

	data, err := f.blobs.Get(ctx, intent.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch uploaded object: %w", err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if req.Checksum != "" && !strings.EqualFold(req.Checksum, digest) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrValidation)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if !HeadLooksAcceptable(head, policy) {
		return nil, fmt.Errorf("%w: content does not look like %s", ErrValidation, intent.DeclaredType)
	}
	// The bytes are already in hand, so the full-content sniff runs here
	// too: a conclusively identified type that contradicts the declaration
	// never gets an upload row. Inconclusive detections pass and the scan
	// worker settles them.
	if MimeConflictsWithDeclared(data, intent.DeclaredType) {
		return nil, fmt.Errorf("%w: content sniffs as %s, declared %s", ErrValidation, DetectMime(data), intent.DeclaredType)
	}

	consumed, err := f.uploads.ConsumeIntent(intent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume intent: %w", err)
	}
	if !consumed {
		return nil, ErrIntentGone
	}

	up := &models.Upload{
		UUID:       uuid.New().String(),
		IntentID:   intent.ID,
		Kind:       intent.Kind,
		StorageKey: intent.StorageKey,
		Size:       info.Size,
		SHA256:     digest,
		Status:     models.UploadStatusPendingScan,
	}
	if err := f.uploads.CreateUpload(up); err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	payload := UploadScanPayload{UploadID: up.ID}
	if err := f.scheduler.Enqueue(JobTypeScan, payload.ToMap()); err != nil {
		// The PENDING_SCAN row exists; the scan sweep picks it up later.
		log.Errorf("[Upload] Failed to enqueue scan for upload %d: %v", up.ID, err)
	}

	log.Infof("[Upload] Finalized upload %d (intent %s, %d bytes, sha256 %s)", up.ID, intent.UUID, up.Size, digest[:12])
	return up, nil
}
