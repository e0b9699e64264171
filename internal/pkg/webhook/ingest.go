package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
)

// Scheduler is the async hand-off the gate and processor use. The redis job
// queue satisfies it; tests inject a recorder.
type Scheduler interface {
	Enqueue(jobType string, payload map[string]interface{}) error
	EnqueueDelayed(jobType string, payload map[string]interface{}, delay time.Duration) error
}

// Job type tags shared with the queue wiring.
const (
	JobTypeProcess = "webhook_process"
)

// Gate is the synchronous ingestion step: verify, persist, enqueue, return.
// Every durable write completes before the HTTP response; only the actual
// processing is deferred.
type Gate struct {
	providers *Registry
	replay    ReplayGuard
	blobs     blobstore.Store
	sealer    *blobstore.Sealer
	events    repository.WebhookEventRepository
	scheduler Scheduler
}

// NewGate wires the ingestion gate.
func NewGate(
	providers *Registry,
	replay ReplayGuard,
	blobs blobstore.Store,
	sealer *blobstore.Sealer,
	events repository.WebhookEventRepository,
	scheduler Scheduler,
) *Gate {
	return &Gate{
		providers: providers,
		replay:    replay,
		blobs:     blobs,
		sealer:    sealer,
		events:    events,
		scheduler: scheduler,
	}
}

// GateResult reports what ingestion did with a delivery.
type GateResult struct {
	Event     *models.WebhookEvent
	Duplicate bool
}

// Ingest runs the gate steps in order; each must complete before the next.
// Authentication and replay failures leave no ledger row and no blob write.
// Failures after verification surface as errors so the provider redelivers.
func (g *Gate) Ingest(ctx context.Context, providerName string, h Headers, body []byte) (*GateResult, error) {
	provider, ok := g.providers.Get(providerName)
	if !ok {
		return nil, ErrUnknownProvider
	}

	for _, header := range provider.RequiredHeaders() {
		if h.Get(header) == "" {
			return nil, fmt.Errorf("%w: missing header %s", ErrAuthentication, header)
		}
	}

	if !provider.VerifySignature(body, h) {
		return nil, fmt.Errorf("%w: bad signature", ErrAuthentication)
	}

	// Anti-replay runs after signature verification so attackers cannot
	// poison the nonce store with unauthenticated garbage.
	nonce := provider.Nonce(h)
	if nonce == "" {
		nonce = provider.EventID(h)
	}
	if nonce != "" {
		fresh, err := g.replay.CheckAndRemember(providerName, nonce)
		if err != nil {
			return nil, err
		}
		if !fresh {
			return nil, ErrReplay
		}
	}

	sealed, err := g.sealer.Seal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to seal payload: %w", err)
	}
	rawKey := blobstore.WebhookPayloadKey(providerName, time.Now())
	if err := g.blobs.Put(ctx, rawKey, sealed, "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("failed to persist raw payload: %w", err)
	}

	eventID := provider.EventID(h)
	idempotencyKey := eventID
	if idempotencyKey == "" {
		sum := sha256.Sum256(body)
		idempotencyKey = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := g.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:        providerName,
		ProviderEventID: eventID,
		IdempotencyKey:  idempotencyKey,
		RawPayloadKey:   rawKey,
		RedactedPreview: RedactPreview(body),
		SignatureValid:  true,
		Status:          models.WebhookStatusReceived,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist webhook event: %w", err)
	}
	if !created {
		log.Infof("[Webhook] Duplicate delivery for %s event %s, short-circuiting", providerName, idempotencyKey)
		return &GateResult{Event: stored, Duplicate: true}, nil
	}

	payload := WebhookProcessPayload{EventID: stored.ID}
	if err := g.scheduler.Enqueue(JobTypeProcess, payload.ToMap()); err != nil {
		// The row exists, so the reconciliation sweep will pick the event up;
		// still surface the error so the provider redelivers promptly.
		return nil, fmt.Errorf("failed to enqueue webhook event %d: %w", stored.ID, err)
	}

	log.Infof("[Webhook] Ingested %s event %d (provider id %q)", providerName, stored.ID, eventID)
	return &GateResult{Event: stored}, nil
}
