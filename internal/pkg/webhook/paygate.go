package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/env"
)

// Paygate header names.
const (
	paygateSignatureHeader = "X-Paygate-Signature"
	paygateNonceHeader     = "X-Paygate-Nonce"
	paygateTimestampHeader = "X-Paygate-Timestamp"
	paygateEventIDHeader   = "X-Paygate-Event-Id"
)

// PaygateProvider adapts the payment processor's webhooks: payment
// confirmations settle marketplace orders. Signature scheme: hex HMAC-SHA256
// over body + "." + nonce + "." + timestamp with a shared secret.
type PaygateProvider struct {
	secret string
	orders repository.OrderRepository
}

// NewPaygateProvider creates the payment provider adapter.
func NewPaygateProvider(secret string, orders repository.OrderRepository) *PaygateProvider {
	return &PaygateProvider{secret: strings.TrimSpace(secret), orders: orders}
}

// NewPaygateProviderFromEnv reads the shared secret from PAYGATE_WEBHOOK_SECRET.
func NewPaygateProviderFromEnv(orders repository.OrderRepository) *PaygateProvider {
	return NewPaygateProvider(env.GetEnv("PAYGATE_WEBHOOK_SECRET", ""), orders)
}

func (p *PaygateProvider) Name() string { return "paygate" }

func (p *PaygateProvider) RequiredHeaders() []string {
	return []string{paygateSignatureHeader, paygateNonceHeader, paygateTimestampHeader}
}

func (p *PaygateProvider) EventID(h Headers) string {
	return h.Get(paygateEventIDHeader)
}

func (p *PaygateProvider) Nonce(h Headers) string {
	return h.Get(paygateNonceHeader)
}

func (p *PaygateProvider) VerifySignature(body []byte, h Headers) bool {
	sig := strings.TrimSpace(h.Get(paygateSignatureHeader))
	if sig == "" || p.secret == "" {
		return false
	}
	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	mac.Write([]byte("."))
	mac.Write([]byte(h.Get(paygateNonceHeader)))
	mac.Write([]byte("."))
	mac.Write([]byte(h.Get(paygateTimestampHeader)))
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// PaygateEvent is the parsed payment notification.
type PaygateEvent struct {
	EventType   string `json:"event_type"`
	OrderNumber string `json:"order_number"`
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	FailureCode string `json:"failure_code"`
}

func (e *PaygateEvent) Kind() string { return e.EventType }

func (p *PaygateProvider) Parse(body []byte) (Event, error) {
	var evt PaygateEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("invalid paygate payload: %w", err)
	}
	if strings.TrimSpace(evt.OrderNumber) == "" {
		return nil, errors.New("paygate payload missing order_number")
	}
	return &evt, nil
}

func (p *PaygateProvider) Handle(ctx context.Context, evt Event) error {
	_ = ctx
	payment, ok := evt.(*PaygateEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}

	switch strings.ToLower(strings.TrimSpace(payment.Status)) {
	case "succeeded", "paid":
		settled, err := p.orders.MarkPaid(payment.OrderNumber, payment.PaymentID, time.Now())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment for unknown order %s", payment.OrderNumber)
			}
			return err
		}
		if !settled {
			// Redelivery of an already-settled order is fine.
			log.Infof("[Paygate] Order %s already settled, ignoring", payment.OrderNumber)
		}
		return nil
	case "failed", "declined":
		if err := p.orders.MarkPaymentFailed(payment.OrderNumber, payment.FailureCode); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment failure for unknown order %s", payment.OrderNumber)
			}
			return err
		}
		return nil
	default:
		// Intermediate states (authorized, pending) carry no local effect.
		log.Infof("[Paygate] Ignoring payment status %q for order %s", payment.Status, payment.OrderNumber)
		return nil
	}
}
