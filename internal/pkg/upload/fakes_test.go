package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
)

// fakeUploads is an in-memory UploadRepository covering the intent and
// upload methods the presign/finalize paths touch.
type fakeUploads struct {
	repository.UploadRepository
	mu      sync.Mutex
	nextID  uint
	intents map[uint]*models.UploadIntent
	uploads map[uint]*models.Upload
}

func newFakeUploads() *fakeUploads {
	return &fakeUploads{
		nextID:  1,
		intents: make(map[uint]*models.UploadIntent),
		uploads: make(map[uint]*models.Upload),
	}
}

func (f *fakeUploads) CreateIntent(intent *models.UploadIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent.ID = f.nextID
	f.nextID++
	stored := *intent
	f.intents[intent.ID] = &stored
	return nil
}

func (f *fakeUploads) FindIntentByUUID(uuid string) (*models.UploadIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, intent := range f.intents {
		if intent.UUID == uuid {
			clone := *intent
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUploads) FindIntentByID(id uint) (*models.UploadIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *intent
	return &clone, nil
}

func (f *fakeUploads) ConsumeIntent(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[id]
	if !ok || intent.Status != models.IntentStatusPendingUpload {
		return false, nil
	}
	intent.Status = models.IntentStatusCompleted
	return true, nil
}

func (f *fakeUploads) ListExpiredIntents(now time.Time, limit int) ([]models.UploadIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []models.UploadIntent
	for _, intent := range f.intents {
		if intent.Status == models.IntentStatusPendingUpload && now.After(intent.PresignExpires) {
			expired = append(expired, *intent)
		}
		if len(expired) >= limit {
			break
		}
	}
	return expired, nil
}

func (f *fakeUploads) ExpireIntent(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[id]
	if !ok || intent.Status != models.IntentStatusPendingUpload {
		return false, nil
	}
	intent.Status = models.IntentStatusExpired
	return true, nil
}

func (f *fakeUploads) ListStalePendingScan(cutoff time.Time, limit int) ([]models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []models.Upload
	for _, up := range f.uploads {
		if up.Status == models.UploadStatusPendingScan && up.UpdatedAt.Before(cutoff) {
			stale = append(stale, *up)
		}
		if len(stale) >= limit {
			break
		}
	}
	return stale, nil
}

func (f *fakeUploads) CreateUpload(upload *models.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	upload.ID = f.nextID
	f.nextID++
	stored := *upload
	f.uploads[upload.ID] = &stored
	return nil
}

func (f *fakeUploads) FindUploadByID(id uint) (*models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	upload, ok := f.uploads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *upload
	return &clone, nil
}

// fakeBlobs is an in-memory blobstore.Store.
type fakeBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	presigns int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeBlobs) Head(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return &blobstore.ObjectInfo{Size: int64(len(data))}, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigns++
	return "https://storage.test/" + key, nil
}

// fakeSched records scan jobs.
type fakeSched struct {
	mu    sync.Mutex
	jobs  []map[string]interface{}
	types []string
	fail  bool
}

func (f *fakeSched) Enqueue(jobType string, payload map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("queue unavailable")
	}
	f.jobs = append(f.jobs, payload)
	f.types = append(f.types, jobType)
	return nil
}

func (f *fakeSched) EnqueueDelayed(jobType string, payload map[string]interface{}, delay time.Duration) error {
	return f.Enqueue(jobType, payload)
}
