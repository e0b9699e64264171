package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
)

type gormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository backed by GORM.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &gormOrderRepository{db: db}
}

func (r *gormOrderRepository) FindByOrderNumber(orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid settles an order exactly once. Redelivered payment webhooks hit
// the CAS guard and report false without touching the row again.
func (r *gormOrderRepository) MarkPaid(orderNumber, paymentReference string, paidAt time.Time) (bool, error) {
	tx := r.db.Model(&models.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, models.OrderStatusPendingPayment).
		Updates(map[string]interface{}{
			"status":            models.OrderStatusPaid,
			"payment_reference": paymentReference,
			"paid_at":           &paidAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 0 {
		// Zero rows could mean a redelivery on a settled order or an order
		// we never created. Only the former is a silent no-op.
		if err := r.mustExist(orderNumber); err != nil {
			return false, err
		}
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormOrderRepository) MarkPaymentFailed(orderNumber, reason string) error {
	tx := r.db.Model(&models.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, models.OrderStatusPendingPayment).
		Updates(map[string]interface{}{
			"status":            models.OrderStatusFailed,
			"payment_reference": reason,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return r.mustExist(orderNumber)
	}
	return nil
}

// mustExist returns gorm.ErrRecordNotFound when no order carries the given
// order number, nil otherwise.
func (r *gormOrderRepository) mustExist(orderNumber string) error {
	var count int64
	if err := r.db.Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
