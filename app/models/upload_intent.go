package models

import "time"

// Upload intent statuses.
const (
	IntentStatusPendingUpload = "PENDING_UPLOAD"
	IntentStatusCompleted     = "COMPLETED"
	IntentStatusExpired       = "EXPIRED"
)

// Upload kinds, each with its own allowed-type and max-size policy.
const (
	UploadKindAvatar       = "avatar"
	UploadKindProductAsset = "product-asset"
	UploadKindDocument     = "document"
	UploadKindScript       = "script"
)

// UploadIntent records a client's request to upload before any bytes arrive.
// OriginalName, DeclaredType and DeclaredSize are client-asserted and
// untrusted; the finalizer and scan worker re-establish the real values.
type UploadIntent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	Kind           string    `gorm:"type:varchar(32);not null;index" json:"kind"`
	OriginalName   string    `gorm:"type:varchar(255);not null" json:"original_name"`
	DeclaredType   string    `gorm:"type:varchar(128);not null" json:"declared_type"`
	DeclaredSize   int64     `gorm:"not null" json:"declared_size"`
	StorageKey     string    `gorm:"type:varchar(255);not null" json:"storage_key"`
	PresignExpires time.Time `gorm:"type:timestamp;not null" json:"presign_expires"`
	Status         string    `gorm:"type:varchar(20);not null;default:'PENDING_UPLOAD';index" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether the presigned credential window has passed.
func (i *UploadIntent) IsExpired(now time.Time) bool {
	return now.After(i.PresignExpires)
}

// IsConsumable reports whether finalization may still consume this intent.
func (i *UploadIntent) IsConsumable(now time.Time) bool {
	return i.Status == IntentStatusPendingUpload && !i.IsExpired(now)
}
