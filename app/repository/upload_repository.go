package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
)

type gormUploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates an upload repository backed by GORM.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &gormUploadRepository{db: db}
}

func (r *gormUploadRepository) CreateIntent(intent *models.UploadIntent) error {
	return r.db.Create(intent).Error
}

func (r *gormUploadRepository) FindIntentByUUID(uuid string) (*models.UploadIntent, error) {
	var intent models.UploadIntent
	if err := r.db.Where("uuid = ?", uuid).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *gormUploadRepository) FindIntentByID(id uint) (*models.UploadIntent, error) {
	var intent models.UploadIntent
	if err := r.db.First(&intent, id).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// ConsumeIntent flips PENDING_UPLOAD to COMPLETED exactly once; a false
// return means the intent was already consumed or expired.
func (r *gormUploadRepository) ConsumeIntent(id uint) (bool, error) {
	tx := r.db.Model(&models.UploadIntent{}).
		Where("id = ? AND status = ?", id, models.IntentStatusPendingUpload).
		Update("status", models.IntentStatusCompleted)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormUploadRepository) ListExpiredIntents(now time.Time, limit int) ([]models.UploadIntent, error) {
	var intents []models.UploadIntent
	err := r.db.Where("status = ? AND presign_expires < ?", models.IntentStatusPendingUpload, now).
		Order("presign_expires ASC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

// ExpireIntent flips PENDING_UPLOAD to EXPIRED exactly once so only one
// janitor pass cleans up the orphaned object.
func (r *gormUploadRepository) ExpireIntent(id uint) (bool, error) {
	tx := r.db.Model(&models.UploadIntent{}).
		Where("id = ? AND status = ?", id, models.IntentStatusPendingUpload).
		Update("status", models.IntentStatusExpired)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormUploadRepository) CreateUpload(upload *models.Upload) error {
	return r.db.Create(upload).Error
}

func (r *gormUploadRepository) FindUploadByID(id uint) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.First(&upload, id).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *gormUploadRepository) FindUploadByUUID(uuid string) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.Where("uuid = ?", uuid).First(&upload).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *gormUploadRepository) FindUploadBySHA256(sha256 string) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.Where("sha256 = ?", sha256).Order("created_at DESC").First(&upload).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *gormUploadRepository) SetScanResult(id uint, detectedMime, reportKey string) error {
	now := time.Now()
	return r.db.Model(&models.Upload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"detected_mime":   detectedMime,
		"scan_report_key": reportKey,
		"scanned_at":      &now,
	}).Error
}

// UpdateStatusCAS applies a state-machine transition optimistically: the row
// only changes when it is still in fromStatus. Concurrent verdicts
// (scan worker vs. external AV) re-read and re-run the transition on a miss.
func (r *gormUploadRepository) UpdateStatusCAS(id uint, fromStatus, toStatus, reason string) (bool, error) {
	tx := r.db.Model(&models.Upload{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":        toStatus,
			"status_reason": reason,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormUploadRepository) ListByStatus(status string, limit int) ([]models.Upload, error) {
	var uploads []models.Upload
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&uploads).Error
	return uploads, err
}

func (r *gormUploadRepository) ListStalePendingScan(cutoff time.Time, limit int) ([]models.Upload, error) {
	var uploads []models.Upload
	err := r.db.Where("status = ? AND updated_at < ?", models.UploadStatusPendingScan, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&uploads).Error
	return uploads, err
}
