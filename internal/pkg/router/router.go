package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/mkoberg/signalmarket/app/controllers"
	"github.com/mkoberg/signalmarket/internal/pkg/middleware"
)

// Controllers bundles everything the router mounts.
type Controllers struct {
	Webhooks *controllers.WebhookController
	Uploads  *controllers.UploadController
	Admin    *controllers.AdminController
}

// InstallRouter mounts all routes. Webhook endpoints stay outside the rate
// limiter group; throttling a legitimate provider burst would turn into
// redelivery storms.
func InstallRouter(app *fiber.App, c Controllers) {
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/webhooks/:provider", c.Webhooks.HandleIngest)

	api := app.Group("/api", limiter.New())
	v1 := api.Group("/v1")

	uploads := v1.Group("/uploads")
	uploads.Post("/presign", c.Uploads.HandlePresign)
	uploads.Post("/finalize", c.Uploads.HandleFinalize)
	uploads.Get("/:uuid/status", c.Uploads.HandleStatus)

	admin := v1.Group("/admin", middleware.AdminAPIKeyMiddleware())
	admin.Get("/webhook-events", c.Admin.HandleListWebhookEvents)
	admin.Get("/webhook-events/:id", c.Admin.HandleGetWebhookEvent)
	admin.Post("/webhook-events/:id/requeue", c.Admin.HandleRequeueEvent)
	admin.Get("/uploads", c.Admin.HandleListUploads)
	admin.Post("/uploads/:uuid/verdict", c.Admin.HandleUploadVerdict)
	admin.Get("/audit/:entityType/:entityID", c.Admin.HandleListAuditLog)
	admin.Get("/queue/stats", c.Admin.HandleQueueStats)
	admin.Get("/queue/jobs/:id", c.Admin.HandleGetQueueJob)
}
