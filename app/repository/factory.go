package repository

import "gorm.io/gorm"

// Repositories bundles all repository implementations for injection.
type Repositories struct {
	WebhookEvents WebhookEventRepository
	Uploads       UploadRepository
	Orders        OrderRepository
	AuditLogs     AuditLogRepository
}

// NewRepositories wires all GORM-backed repositories from one DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		WebhookEvents: NewWebhookEventRepository(db),
		Uploads:       NewUploadRepository(db),
		Orders:        NewOrderRepository(db),
		AuditLogs:     NewAuditLogRepository(db),
	}
}
