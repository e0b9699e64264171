package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkoberg/signalmarket/app/models"
)

type gormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a ledger repository backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &gormWebhookEventRepository{db: db}
}

func (r *gormWebhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "idempotency_key"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND idempotency_key = ?", event.Provider, event.IdempotencyKey).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormWebhookEventRepository) FindByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// ClaimForProcessing transitions RECEIVED/RETRYING to PROCESSING atomically.
// A false return means another worker holds the event (or it is terminal).
func (r *gormWebhookEventRepository) ClaimForProcessing(id uint) (bool, error) {
	tx := r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status IN ?", id, []string{models.WebhookStatusReceived, models.WebhookStatusRetrying}).
		Updates(map[string]interface{}{
			"status":     models.WebhookStatusProcessing,
			"updated_at": time.Now(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormWebhookEventRepository) MarkProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          models.WebhookStatusProcessed,
		"processed_at":    &now,
		"last_error":      "",
		"next_attempt_at": nil,
	}).Error
}

func (r *gormWebhookEventRepository) MarkRetrying(id uint, attempts int, lastError string, nextAttemptAt time.Time) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          models.WebhookStatusRetrying,
		"attempts":        attempts,
		"last_error":      lastError,
		"next_attempt_at": &nextAttemptAt,
	}).Error
}

func (r *gormWebhookEventRepository) MarkDeadLetter(id uint, attempts int, lastError string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          models.WebhookStatusDeadLetter,
		"attempts":        attempts,
		"last_error":      lastError,
		"next_attempt_at": nil,
	}).Error
}

// ResetForRequeue is the manual operator path out of DEAD_LETTER.
func (r *gormWebhookEventRepository) ResetForRequeue(id uint) (bool, error) {
	now := time.Now()
	tx := r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ?", id, models.WebhookStatusDeadLetter).
		Updates(map[string]interface{}{
			"status":          models.WebhookStatusRetrying,
			"attempts":        0,
			"next_attempt_at": &now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormWebhookEventRepository) ListRetryingDue(now time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?", models.WebhookStatusRetrying, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ListStaleReceived finds events whose enqueue signal was lost (crash or
// queue outage between ledger write and enqueue).
func (r *gormWebhookEventRepository) ListStaleReceived(cutoff time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("status = ? AND created_at < ?", models.WebhookStatusReceived, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormWebhookEventRepository) ListStaleProcessing(cutoff time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("status = ? AND updated_at < ?", models.WebhookStatusProcessing, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormWebhookEventRepository) ListByStatus(status string, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
