package models

import "time"

// Upload scan statuses.
const (
	UploadStatusPendingScan = "PENDING_SCAN"
	UploadStatusScanned     = "SCANNED"
	UploadStatusSuspicious  = "SUSPICIOUS"
	UploadStatusQuarantined = "QUARANTINED"
)

// Upload is the durable record of a finalized upload. Size, DetectedMime and
// SHA256 are established server-side after the bytes exist; the client's
// declarations on the intent are never trusted. Status transitions go
// through the quarantine state machine only.
type Upload struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	IntentID      uint       `gorm:"not null;index" json:"intent_id"`
	Kind          string     `gorm:"type:varchar(32);not null;index" json:"kind"`
	StorageKey    string     `gorm:"type:varchar(255);not null" json:"storage_key"`
	Size          int64      `gorm:"not null" json:"size"`
	DetectedMime  string     `gorm:"type:varchar(128);not null;default:''" json:"detected_mime"`
	SHA256        string     `gorm:"type:char(64);not null;index" json:"sha256"`
	Status        string     `gorm:"type:varchar(20);not null;default:'PENDING_SCAN';index" json:"status"`
	StatusReason  string     `gorm:"type:text" json:"status_reason"`
	ScanReportKey string     `gorm:"type:varchar(255);not null;default:''" json:"scan_report_key"`
	ScannedAt     *time.Time `gorm:"type:timestamp;default:null" json:"scanned_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublicStatus maps the internal state machine to the coarse status end
// users are allowed to see.
func (u *Upload) PublicStatus() string {
	switch u.Status {
	case UploadStatusScanned:
		return "approved"
	case UploadStatusSuspicious, UploadStatusQuarantined:
		return "rejected"
	default:
		return "processing"
	}
}
