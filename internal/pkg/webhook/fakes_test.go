package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
)

// fakeEvents is an in-memory WebhookEventRepository.
type fakeEvents struct {
	mu     sync.Mutex
	nextID uint
	events map[uint]*models.WebhookEvent
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{nextID: 1, events: make(map[uint]*models.WebhookEvent)}
}

func (f *fakeEvents) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.events {
		if existing.Provider == event.Provider && existing.IdempotencyKey == event.IdempotencyKey {
			clone := *existing
			return false, &clone, nil
		}
	}
	event.ID = f.nextID
	f.nextID++
	stored := *event
	f.events[event.ID] = &stored
	clone := stored
	return true, &clone, nil
}

func (f *fakeEvents) FindByID(id uint) (*models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *event
	return &clone, nil
}

func (f *fakeEvents) ClaimForProcessing(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return false, nil
	}
	if event.Status != models.WebhookStatusReceived && event.Status != models.WebhookStatusRetrying {
		return false, nil
	}
	event.Status = models.WebhookStatusProcessing
	return true, nil
}

func (f *fakeEvents) MarkProcessed(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	event.Status = models.WebhookStatusProcessed
	event.ProcessedAt = &now
	return nil
}

func (f *fakeEvents) MarkRetrying(id uint, attempts int, lastError string, nextAttemptAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	event.Status = models.WebhookStatusRetrying
	event.Attempts = attempts
	event.LastError = lastError
	event.NextAttemptAt = &nextAttemptAt
	return nil
}

func (f *fakeEvents) MarkDeadLetter(id uint, attempts int, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	event.Status = models.WebhookStatusDeadLetter
	event.Attempts = attempts
	event.LastError = lastError
	event.NextAttemptAt = nil
	return nil
}

func (f *fakeEvents) ResetForRequeue(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok || event.Status != models.WebhookStatusDeadLetter {
		return false, nil
	}
	event.Status = models.WebhookStatusReceived
	event.Attempts = 0
	event.LastError = ""
	return true, nil
}

func (f *fakeEvents) listWhere(pred func(*models.WebhookEvent) bool, limit int) []models.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WebhookEvent
	for _, event := range f.events {
		if pred(event) {
			out = append(out, *event)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (f *fakeEvents) ListRetryingDue(now time.Time, limit int) ([]models.WebhookEvent, error) {
	return f.listWhere(func(e *models.WebhookEvent) bool {
		return e.Status == models.WebhookStatusRetrying && e.NextAttemptAt != nil && !e.NextAttemptAt.After(now)
	}, limit), nil
}

func (f *fakeEvents) ListStaleReceived(cutoff time.Time, limit int) ([]models.WebhookEvent, error) {
	return f.listWhere(func(e *models.WebhookEvent) bool {
		return e.Status == models.WebhookStatusReceived && e.CreatedAt.Before(cutoff)
	}, limit), nil
}

func (f *fakeEvents) ListStaleProcessing(cutoff time.Time, limit int) ([]models.WebhookEvent, error) {
	return f.listWhere(func(e *models.WebhookEvent) bool {
		return e.Status == models.WebhookStatusProcessing && e.UpdatedAt.Before(cutoff)
	}, limit), nil
}

func (f *fakeEvents) ListByStatus(status string, limit int) ([]models.WebhookEvent, error) {
	return f.listWhere(func(e *models.WebhookEvent) bool { return e.Status == status }, limit), nil
}

// fakeStore is an in-memory blobstore.Store.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeStore) Head(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return &blobstore.ObjectInfo{Size: int64(len(data))}, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

// fakeScheduler records enqueued jobs.
type scheduledJob struct {
	jobType string
	payload map[string]interface{}
	delay   time.Duration
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
	fail bool
}

func (f *fakeScheduler) Enqueue(jobType string, payload map[string]interface{}) error {
	return f.add(jobType, payload, 0)
}

func (f *fakeScheduler) EnqueueDelayed(jobType string, payload map[string]interface{}, delay time.Duration) error {
	return f.add(jobType, payload, delay)
}

func (f *fakeScheduler) add(jobType string, payload map[string]interface{}, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("queue unavailable")
	}
	f.jobs = append(f.jobs, scheduledJob{jobType: jobType, payload: payload, delay: delay})
	return nil
}

// fakeReplay remembers nonces in memory.
type fakeReplay struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeReplay() *fakeReplay {
	return &fakeReplay{seen: make(map[string]bool)}
}

func (f *fakeReplay) CheckAndRemember(provider, nonce string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := provider + ":" + nonce
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

// fakeProvider is a scriptable Provider.
type fakeEvent struct {
	kind string
}

func (e *fakeEvent) Kind() string { return e.kind }

type fakeProvider struct {
	name      string
	required  []string
	validSig  bool
	parseErr  error
	handleErr error
	handled   int
}

func (p *fakeProvider) Name() string                           { return p.name }
func (p *fakeProvider) RequiredHeaders() []string              { return p.required }
func (p *fakeProvider) EventID(h Headers) string               { return h.Get("X-Test-Event-Id") }
func (p *fakeProvider) Nonce(h Headers) string                 { return h.Get("X-Test-Nonce") }
func (p *fakeProvider) VerifySignature(b []byte, h Headers) bool { return p.validSig }

func (p *fakeProvider) Parse(body []byte) (Event, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return &fakeEvent{kind: "test"}, nil
}

func (p *fakeProvider) Handle(ctx context.Context, evt Event) error {
	p.handled++
	return p.handleErr
}
