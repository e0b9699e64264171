package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/internal/pkg/webhook"
)

// WebhookController terminates provider deliveries. It owns only the HTTP
// mapping; every decision happens in the ingestion gate.
type WebhookController struct {
	gate *webhook.Gate
}

func NewWebhookController(gate *webhook.Gate) *WebhookController {
	return &WebhookController{gate: gate}
}

// HandleIngest accepts POST /webhooks/:provider. The response codes are part
// of the provider contract: 2xx stops redelivery, everything else invites it.
func (wc *WebhookController) HandleIngest(c *fiber.Ctx) error {
	providerName := c.Params("provider")
	body := c.Body()

	headers := webhook.Headers{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	result, err := wc.gate.Ingest(c.Context(), providerName, headers, body)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrUnknownProvider):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown provider"})
		case errors.Is(err, webhook.ErrAuthentication):
			fiberlog.Warnf("[Webhook] Rejected delivery for %s: %v", providerName, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication failed"})
		case errors.Is(err, webhook.ErrReplay):
			fiberlog.Warnf("[Webhook] Replayed delivery for %s", providerName)
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "replay detected"})
		default:
			fiberlog.Errorf("[Webhook] Ingest error for %s: %v", providerName, err)
			// Non-2xx so the provider redelivers once we are healthy again.
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "ingestion failed"})
		}
	}

	if result.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "duplicate",
			"event_id": result.Event.ID,
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":   "accepted",
		"event_id": result.Event.ID,
	})
}
