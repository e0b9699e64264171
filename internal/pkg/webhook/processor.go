package webhook

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/audit"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
	"github.com/mkoberg/signalmarket/internal/pkg/env"
)

// ProcessorConfig bounds the retry/backoff state machine.
type ProcessorConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	HandlerTimeout time.Duration
	// BackoffCap limits the exponential schedule so late attempts stay
	// within an operationally useful window.
	BackoffCap time.Duration
}

// DefaultProcessorConfig reads limits from the environment with the
// documented defaults (5 attempts, 2s base).
func DefaultProcessorConfig() ProcessorConfig {
	cfg := ProcessorConfig{
		MaxAttempts:    5,
		BaseDelay:      2 * time.Second,
		HandlerTimeout: 30 * time.Second,
		BackoffCap:     time.Hour,
	}
	if v, err := strconv.Atoi(env.GetEnv("WEBHOOK_MAX_ATTEMPTS", "")); err == nil && v > 0 {
		cfg.MaxAttempts = v
	}
	if v, err := strconv.Atoi(env.GetEnv("WEBHOOK_BASE_DELAY_MS", "")); err == nil && v > 0 {
		cfg.BaseDelay = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.Atoi(env.GetEnv("WEBHOOK_HANDLER_TIMEOUT_S", "")); err == nil && v > 0 {
		cfg.HandlerTimeout = time.Duration(v) * time.Second
	}
	return cfg
}

// Backoff returns the delay before the given attempt number (1-based count
// of failures so far): base * 2^attempts, capped.
func (c ProcessorConfig) Backoff(attempts int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < attempts; i++ {
		d *= 2
		if c.BackoffCap > 0 && d >= c.BackoffCap {
			return c.BackoffCap
		}
	}
	return d
}

// Processor is the asynchronous consumer for ledger events. Processing of a
// single event is serialized through the ledger's own status column: the
// claim is an atomic compare-and-set and losing it means another worker owns
// the event.
type Processor struct {
	events    repository.WebhookEventRepository
	blobs     blobstore.Store
	sealer    *blobstore.Sealer
	providers *Registry
	scheduler Scheduler
	auditor   *audit.Recorder
	cfg       ProcessorConfig
}

// NewProcessor wires the webhook processor.
func NewProcessor(
	events repository.WebhookEventRepository,
	blobs blobstore.Store,
	sealer *blobstore.Sealer,
	providers *Registry,
	scheduler Scheduler,
	auditor *audit.Recorder,
	cfg ProcessorConfig,
) *Processor {
	return &Processor{
		events:    events,
		blobs:     blobs,
		sealer:    sealer,
		providers: providers,
		scheduler: scheduler,
		auditor:   auditor,
		cfg:       cfg,
	}
}

// Process drives one event through the state machine. Re-invocation on a
// PROCESSED or DEAD_LETTER event is a harmless no-op.
func (p *Processor) Process(ctx context.Context, eventID uint) error {
	event, err := p.events.FindByID(eventID)
	if err != nil {
		return fmt.Errorf("failed to load webhook event %d: %w", eventID, err)
	}
	if event.IsTerminal() {
		log.Debugf("[WebhookProcessor] Event %d already %s, nothing to do", eventID, event.Status)
		return nil
	}

	claimed, err := p.events.ClaimForProcessing(eventID)
	if err != nil {
		return fmt.Errorf("failed to claim webhook event %d: %w", eventID, err)
	}
	if !claimed {
		log.Debugf("[WebhookProcessor] Event %d claimed elsewhere, aborting", eventID)
		return nil
	}

	if handleErr := p.dispatch(ctx, event); handleErr != nil {
		return p.scheduleRetry(event, handleErr)
	}

	if err := p.events.MarkProcessed(eventID); err != nil {
		return fmt.Errorf("failed to mark webhook event %d processed: %w", eventID, err)
	}
	log.Infof("[WebhookProcessor] Event %d processed (provider %s)", eventID, event.Provider)
	return nil
}

func (p *Processor) dispatch(ctx context.Context, event *models.WebhookEvent) error {
	provider, ok := p.providers.Get(event.Provider)
	if !ok {
		return fmt.Errorf("no handler registered for provider %s", event.Provider)
	}

	sealed, err := p.blobs.Get(ctx, event.RawPayloadKey)
	if err != nil {
		return fmt.Errorf("failed to fetch raw payload: %w", err)
	}
	body, err := p.sealer.Open(sealed)
	if err != nil {
		return fmt.Errorf("failed to decrypt raw payload: %w", err)
	}

	evt, err := provider.Parse(body)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	// Timeouts count as handler failures and feed the retry path.
	handleCtx, cancel := context.WithTimeout(ctx, p.cfg.HandlerTimeout)
	defer cancel()
	return provider.Handle(handleCtx, evt)
}

func (p *Processor) scheduleRetry(event *models.WebhookEvent, handleErr error) error {
	attempts := event.Attempts + 1

	if attempts >= p.cfg.MaxAttempts {
		log.Errorf("[WebhookProcessor] Event %d dead-lettered after %d attempts: %v", event.ID, attempts, handleErr)
		if err := p.events.MarkDeadLetter(event.ID, attempts, handleErr.Error()); err != nil {
			return fmt.Errorf("failed to dead-letter event %d: %w", event.ID, err)
		}
		p.auditor.Record(models.AuditActorSystem, audit.EntityWebhookEvent, event.ID, "dead_letter",
			fmt.Sprintf("after %d attempts: %v", attempts, handleErr))
		return nil
	}

	delay := p.cfg.Backoff(attempts)
	nextAt := time.Now().Add(delay)
	log.Warnf("[WebhookProcessor] Event %d failed (attempt %d/%d), retrying in %s: %v",
		event.ID, attempts, p.cfg.MaxAttempts, delay, handleErr)

	if err := p.events.MarkRetrying(event.ID, attempts, handleErr.Error(), nextAt); err != nil {
		return fmt.Errorf("failed to mark event %d retrying: %w", event.ID, err)
	}

	payload := WebhookProcessPayload{EventID: event.ID}
	if err := p.scheduler.EnqueueDelayed(JobTypeProcess, payload.ToMap(), delay); err != nil {
		// next_attempt_at is already persisted; the reconciliation sweep
		// re-enqueues the event when the delayed signal is lost.
		log.Errorf("[WebhookProcessor] Failed to schedule retry for event %d: %v", event.ID, err)
	}
	return nil
}
