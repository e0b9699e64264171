package models

import "time"

// Order payment statuses.
const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusFailed         = "FAILED"
)

// Order is the marketplace order the payment provider webhook settles.
// Only the slice of the order the pipeline touches lives here; listing,
// checkout and fulfillment belong to the storefront.
type Order struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	OrderNumber      string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_number"`
	Status           string     `gorm:"type:varchar(20);not null;default:'PENDING_PAYMENT';index" json:"status"`
	AmountCents      int64      `gorm:"not null;default:0" json:"amount_cents"`
	Currency         string     `gorm:"type:char(3);not null;default:'EUR'" json:"currency"`
	PaymentReference string     `gorm:"type:varchar(191);not null;default:''" json:"payment_reference"`
	PaidAt           *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
