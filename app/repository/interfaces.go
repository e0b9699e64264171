package repository

import (
	"time"

	"github.com/mkoberg/signalmarket/app/models"
)

// WebhookEventRepository owns the event ledger. The status column doubles as
// the processing lock: ClaimForProcessing is an atomic compare-and-set and
// callers must abort without side effects when it returns false.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	FindByID(id uint) (*models.WebhookEvent, error)
	ClaimForProcessing(id uint) (bool, error)
	MarkProcessed(id uint) error
	MarkRetrying(id uint, attempts int, lastError string, nextAttemptAt time.Time) error
	MarkDeadLetter(id uint, attempts int, lastError string) error
	ResetForRequeue(id uint) (bool, error)
	ListRetryingDue(now time.Time, limit int) ([]models.WebhookEvent, error)
	ListStaleReceived(cutoff time.Time, limit int) ([]models.WebhookEvent, error)
	ListStaleProcessing(cutoff time.Time, limit int) ([]models.WebhookEvent, error)
	ListByStatus(status string, limit int) ([]models.WebhookEvent, error)
}

// UploadRepository owns upload intents and uploads.
type UploadRepository interface {
	CreateIntent(intent *models.UploadIntent) error
	FindIntentByUUID(uuid string) (*models.UploadIntent, error)
	FindIntentByID(id uint) (*models.UploadIntent, error)
	ConsumeIntent(id uint) (bool, error)
	ListExpiredIntents(now time.Time, limit int) ([]models.UploadIntent, error)
	ExpireIntent(id uint) (bool, error)

	CreateUpload(upload *models.Upload) error
	FindUploadByID(id uint) (*models.Upload, error)
	FindUploadByUUID(uuid string) (*models.Upload, error)
	FindUploadBySHA256(sha256 string) (*models.Upload, error)
	SetScanResult(id uint, detectedMime, reportKey string) error
	UpdateStatusCAS(id uint, fromStatus, toStatus, reason string) (bool, error)
	ListByStatus(status string, limit int) ([]models.Upload, error)
	ListStalePendingScan(cutoff time.Time, limit int) ([]models.Upload, error)
}

// OrderRepository is the slice of the storefront the payment webhook touches.
type OrderRepository interface {
	FindByOrderNumber(orderNumber string) (*models.Order, error)
	MarkPaid(orderNumber, paymentReference string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(orderNumber, reason string) error
}

// AuditLogRepository appends operator-visible pipeline decisions.
type AuditLogRepository interface {
	Append(entry *models.AuditLog) error
	ListByEntity(entityType string, entityID uint) ([]models.AuditLog, error)
}
