package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/models"
)

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	failed map[string]string
}

func newFakeOrders(numbers ...string) *fakeOrders {
	f := &fakeOrders{orders: make(map[string]*models.Order), failed: make(map[string]string)}
	for i, n := range numbers {
		f.orders[n] = &models.Order{ID: uint(i + 1), OrderNumber: n, Status: models.OrderStatusPendingPayment}
	}
	return f
}

func (f *fakeOrders) FindByOrderNumber(orderNumber string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderNumber]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (f *fakeOrders) MarkPaid(orderNumber, paymentReference string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderNumber]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if order.Status != models.OrderStatusPendingPayment {
		return false, nil
	}
	order.Status = models.OrderStatusPaid
	order.PaymentReference = paymentReference
	order.PaidAt = &paidAt
	return true, nil
}

func (f *fakeOrders) MarkPaymentFailed(orderNumber, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderNumber]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = models.OrderStatusFailed
	f.failed[orderNumber] = reason
	return nil
}

func paygateSign(secret string, body []byte, nonce, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte("."))
	mac.Write([]byte(nonce))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaygateVerifySignature(t *testing.T) {
	provider := NewPaygateProvider("topsecret", newFakeOrders())
	body := []byte(`{"order_number":"SM-1"}`)
	h := Headers{
		paygateNonceHeader:     "n1",
		paygateTimestampHeader: "1700000000",
		paygateSignatureHeader: paygateSign("topsecret", body, "n1", "1700000000"),
	}
	assert.True(t, provider.VerifySignature(body, h))

	// Tampered body fails.
	assert.False(t, provider.VerifySignature([]byte(`{"order_number":"SM-2"}`), h))

	// Signature computed under a different secret fails.
	h[paygateSignatureHeader] = paygateSign("wrong", body, "n1", "1700000000")
	assert.False(t, provider.VerifySignature(body, h))

	// Non-hex garbage fails without panicking.
	h[paygateSignatureHeader] = "not-hex!"
	assert.False(t, provider.VerifySignature(body, h))
}

func TestPaygateHandleSettlesOrder(t *testing.T) {
	orders := newFakeOrders("SM-1001")
	provider := NewPaygateProvider("s", orders)

	evt, err := provider.Parse([]byte(`{"event_type":"payment.updated","order_number":"SM-1001","payment_id":"pay_42","status":"succeeded"}`))
	require.NoError(t, err)
	require.NoError(t, provider.Handle(context.Background(), evt))

	order, err := orders.FindByOrderNumber("SM-1001")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "pay_42", order.PaymentReference)
	require.NotNil(t, order.PaidAt)
}

func TestPaygateHandleIsIdempotent(t *testing.T) {
	orders := newFakeOrders("SM-1001")
	provider := NewPaygateProvider("s", orders)

	evt, err := provider.Parse([]byte(`{"order_number":"SM-1001","payment_id":"pay_1","status":"paid"}`))
	require.NoError(t, err)
	require.NoError(t, provider.Handle(context.Background(), evt))

	// A second settlement attempt changes nothing and raises no error.
	evt2, err := provider.Parse([]byte(`{"order_number":"SM-1001","payment_id":"pay_other","status":"paid"}`))
	require.NoError(t, err)
	require.NoError(t, provider.Handle(context.Background(), evt2))

	order, _ := orders.FindByOrderNumber("SM-1001")
	assert.Equal(t, "pay_1", order.PaymentReference)
}

func TestPaygateHandleUnknownOrderErrsForRetry(t *testing.T) {
	provider := NewPaygateProvider("s", newFakeOrders())

	evt, err := provider.Parse([]byte(`{"order_number":"SM-404","status":"succeeded"}`))
	require.NoError(t, err)
	// The order row may simply not be committed yet; retrying is correct.
	err = provider.Handle(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown order")
}

func TestPaygateHandleDistinguishesSettledFromUnknown(t *testing.T) {
	orders := newFakeOrders("SM-5")
	provider := NewPaygateProvider("s", orders)

	evt, err := provider.Parse([]byte(`{"order_number":"SM-5","payment_id":"pay_1","status":"paid"}`))
	require.NoError(t, err)
	require.NoError(t, provider.Handle(context.Background(), evt))

	// Redelivery on the settled order is a silent no-op.
	redelivery, err := provider.Parse([]byte(`{"order_number":"SM-5","payment_id":"pay_1","status":"paid"}`))
	require.NoError(t, err)
	assert.NoError(t, provider.Handle(context.Background(), redelivery))

	// A payment for an order that never existed must not be swallowed
	// the same way.
	unknown, err := provider.Parse([]byte(`{"order_number":"SM-6","payment_id":"pay_2","status":"paid"}`))
	require.NoError(t, err)
	assert.Error(t, provider.Handle(context.Background(), unknown))
}

func TestPaygateHandleUnknownOrderFailureErrsForRetry(t *testing.T) {
	provider := NewPaygateProvider("s", newFakeOrders())

	evt, err := provider.Parse([]byte(`{"order_number":"SM-404","status":"declined","failure_code":"card_expired"}`))
	require.NoError(t, err)
	err = provider.Handle(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown order")
}

func TestPaygateHandleFailure(t *testing.T) {
	orders := newFakeOrders("SM-2")
	provider := NewPaygateProvider("s", orders)

	evt, err := provider.Parse([]byte(`{"order_number":"SM-2","status":"declined","failure_code":"card_expired"}`))
	require.NoError(t, err)
	require.NoError(t, provider.Handle(context.Background(), evt))

	order, _ := orders.FindByOrderNumber("SM-2")
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.Equal(t, "card_expired", orders.failed["SM-2"])
}

func TestPaygateHandleIgnoresIntermediateStates(t *testing.T) {
	orders := newFakeOrders("SM-3")
	provider := NewPaygateProvider("s", orders)

	evt, err := provider.Parse([]byte(`{"order_number":"SM-3","status":"authorized"}`))
	require.NoError(t, err)
	require.NoError(t, provider.Handle(context.Background(), evt))

	order, _ := orders.FindByOrderNumber("SM-3")
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
}

func TestPaygateParseRejectsMissingOrderNumber(t *testing.T) {
	provider := NewPaygateProvider("s", newFakeOrders())
	_, err := provider.Parse([]byte(`{"status":"succeeded"}`))
	assert.Error(t, err)
}
