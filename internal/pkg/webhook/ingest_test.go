package webhook

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
)

func testSealer(t *testing.T) *blobstore.Sealer {
	t.Helper()
	sealer, err := blobstore.NewSealer(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return sealer
}

type gateFixture struct {
	gate      *Gate
	provider  *fakeProvider
	events    *fakeEvents
	store     *fakeStore
	scheduler *fakeScheduler
	sealer    *blobstore.Sealer
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	provider := &fakeProvider{
		name:     "testpay",
		required: []string{"X-Test-Signature"},
		validSig: true,
	}
	registry := NewRegistry()
	registry.Register(provider)

	f := &gateFixture{
		provider:  provider,
		events:    newFakeEvents(),
		store:     newFakeStore(),
		scheduler: &fakeScheduler{},
		sealer:    testSealer(t),
	}
	f.gate = NewGate(registry, newFakeReplay(), f.store, f.sealer, f.events, f.scheduler)
	return f
}

func validHeaders() Headers {
	return Headers{
		"X-Test-Signature": "sig",
		"X-Test-Nonce":     "nonce-1",
		"X-Test-Event-Id":  "evt-1",
	}
}

func TestIngestHappyPath(t *testing.T) {
	f := newGateFixture(t)
	body := []byte(`{"order_number":"SM-1001","status":"succeeded"}`)

	result, err := f.gate.Ingest(context.Background(), "testpay", validHeaders(), body)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Duplicate)

	event := result.Event
	assert.Equal(t, models.WebhookStatusReceived, event.Status)
	assert.Equal(t, "testpay", event.Provider)
	assert.Equal(t, "evt-1", event.IdempotencyKey)
	assert.True(t, event.SignatureValid)
	assert.NotEmpty(t, event.RawPayloadKey)

	// The stored blob must be sealed, not the raw body.
	sealed, err := f.store.Get(context.Background(), event.RawPayloadKey)
	require.NoError(t, err)
	assert.NotEqual(t, body, sealed)
	opened, err := f.sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, body, opened)

	require.Len(t, f.scheduler.jobs, 1)
	assert.Equal(t, JobTypeProcess, f.scheduler.jobs[0].jobType)
}

func TestIngestUnknownProvider(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.Ingest(context.Background(), "nobody", validHeaders(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestIngestMissingHeaderLeavesNoTrace(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.Ingest(context.Background(), "testpay", Headers{}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Empty(t, f.events.events)
	assert.Empty(t, f.store.objects)
	assert.Empty(t, f.scheduler.jobs)
}

func TestIngestBadSignatureLeavesNoTrace(t *testing.T) {
	f := newGateFixture(t)
	f.provider.validSig = false

	_, err := f.gate.Ingest(context.Background(), "testpay", validHeaders(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Empty(t, f.events.events)
	assert.Empty(t, f.store.objects)
	assert.Empty(t, f.scheduler.jobs)
}

func TestIngestReplaySameNonce(t *testing.T) {
	f := newGateFixture(t)
	body := []byte(`{"a":1}`)

	_, err := f.gate.Ingest(context.Background(), "testpay", validHeaders(), body)
	require.NoError(t, err)

	// Same nonce but a different event ID is a replay, not a redelivery.
	h := validHeaders()
	h["X-Test-Event-Id"] = "evt-2"
	_, err = f.gate.Ingest(context.Background(), "testpay", h, body)
	assert.ErrorIs(t, err, ErrReplay)
	assert.Len(t, f.events.events, 1)
}

func TestIngestDuplicateDeliveryShortCircuits(t *testing.T) {
	f := newGateFixture(t)
	body := []byte(`{"a":1}`)

	first, err := f.gate.Ingest(context.Background(), "testpay", validHeaders(), body)
	require.NoError(t, err)

	// Redelivery carries the same event ID with a fresh nonce.
	h := validHeaders()
	h["X-Test-Nonce"] = "nonce-2"
	second, err := f.gate.Ingest(context.Background(), "testpay", h, body)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Event.ID, second.Event.ID)

	// Only the first delivery produced a process job.
	assert.Len(t, f.scheduler.jobs, 1)
	assert.Len(t, f.events.events, 1)
}

func TestIngestHashFallbackIdempotencyKey(t *testing.T) {
	f := newGateFixture(t)
	body := []byte(`{"no":"event id"}`)

	h := Headers{"X-Test-Signature": "sig"}
	result, err := f.gate.Ingest(context.Background(), "testpay", h, body)
	require.NoError(t, err)
	assert.Contains(t, result.Event.IdempotencyKey, "hash:")
}

func TestIngestEnqueueFailureSurfacesError(t *testing.T) {
	f := newGateFixture(t)
	f.scheduler.fail = true

	_, err := f.gate.Ingest(context.Background(), "testpay", validHeaders(), []byte(`{}`))
	require.Error(t, err)

	// The ledger row exists; the reconciliation sweep will pick it up.
	assert.Len(t, f.events.events, 1)
}

func TestRedactPreview(t *testing.T) {
	body := []byte(`{"email":"alice@example.com","card":"4111111111111111","auth":"Bearer sk_abcdefgh12345678"}`)
	preview := RedactPreview(body)

	assert.NotContains(t, preview, "alice@example.com")
	assert.Contains(t, preview, "***@example.com")
	assert.NotContains(t, preview, "4111111111111111")
	assert.Contains(t, preview, "1111")
	assert.NotContains(t, preview, "sk_abcdefgh12345678")
}

func TestRedactPreviewTruncates(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 5000)
	assert.Len(t, RedactPreview(long), previewLimit)
}
