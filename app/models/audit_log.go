package models

import "time"

// Audit actor kinds.
const (
	AuditActorSystem   = "system"
	AuditActorOperator = "operator"
	AuditActorProvider = "provider"
)

// AuditLog is an append-only trail of pipeline decisions operators need to
// see: dead-letters, quarantines, manual overrides and transition anomalies.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Actor      string    `gorm:"type:varchar(20);not null" json:"actor"`
	EntityType string    `gorm:"type:varchar(32);not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   uint      `gorm:"not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Action     string    `gorm:"type:varchar(64);not null;index" json:"action"`
	Detail     string    `gorm:"type:text" json:"detail"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
