package repository

import (
	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
)

type gormAuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates an audit log repository backed by GORM.
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &gormAuditLogRepository{db: db}
}

func (r *gormAuditLogRepository) Append(entry *models.AuditLog) error {
	return r.db.Create(entry).Error
}

func (r *gormAuditLogRepository) ListByEntity(entityType string, entityID uint) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
