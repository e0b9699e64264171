package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ObjectInfo is the subset of object metadata the pipeline verifies.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// Store is the durable byte store behind webhook payloads, uploads and scan
// reports. The S3 client implements it in production; tests use an
// in-memory fake.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error)
}

// WebhookPayloadKey builds the blob key for an encrypted raw webhook body.
// Format: webhooks/<provider>/YYYY/MM/<uuid>.bin
func WebhookPayloadKey(provider string, now time.Time) string {
	return fmt.Sprintf("webhooks/%s/%04d/%02d/%s.bin", provider, now.Year(), int(now.Month()), uuid.New().String())
}

// UploadKey builds the blob key a presigned upload writes to.
// Format: uploads/<kind>/YYYY/MM/<uuid><ext>
func UploadKey(kind, ext string, now time.Time) string {
	return fmt.Sprintf("uploads/%s/%04d/%02d/%s%s", kind, now.Year(), int(now.Month()), uuid.New().String(), ext)
}

// ScanReportKey builds the blob key for a detailed scan report.
func ScanReportKey(uploadUUID string) string {
	return fmt.Sprintf("scan-reports/%s.json", uploadUUID)
}
