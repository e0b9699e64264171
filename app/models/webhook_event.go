package models

import "time"

// Webhook event processing statuses.
const (
	WebhookStatusReceived   = "RECEIVED"
	WebhookStatusProcessing = "PROCESSING"
	WebhookStatusProcessed  = "PROCESSED"
	WebhookStatusRetrying   = "RETRYING"
	WebhookStatusDeadLetter = "DEAD_LETTER"
)

// WebhookEvent is the durable ledger row for every inbound provider webhook.
// Raw bodies never live inline; they are encrypted and written to the blob
// store, and RawPayloadKey references them. Rows are never deleted (audit
// requirement) and are mutated only by the webhook processor.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(32);not null;index:ux_webhook_events_provider_idem,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:''" json:"provider_event_id"`
	IdempotencyKey  string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_provider_idem,unique,priority:2" json:"idempotency_key"`
	RawPayloadKey   string     `gorm:"type:varchar(255);not null" json:"raw_payload_key"`
	RedactedPreview string     `gorm:"type:text" json:"redacted_preview"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Status          string     `gorm:"type:varchar(20);not null;default:'RECEIVED';index" json:"status"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	LastError       string     `gorm:"type:text" json:"last_error"`
	NextAttemptAt   *time.Time `gorm:"type:timestamp;default:null;index" json:"next_attempt_at,omitempty"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the event reached a final state.
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookStatusProcessed || e.Status == WebhookStatusDeadLetter
}
