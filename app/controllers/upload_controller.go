package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/upload"
)

// UploadController exposes the three public upload operations: presign,
// finalize and status. Status deliberately leaks nothing about scan
// internals; clients see processing, approved or rejected.
type UploadController struct {
	presign   *upload.PresignService
	finalizer *upload.Finalizer
	uploads   repository.UploadRepository
}

func NewUploadController(presign *upload.PresignService, finalizer *upload.Finalizer, uploads repository.UploadRepository) *UploadController {
	return &UploadController{presign: presign, finalizer: finalizer, uploads: uploads}
}

// HandlePresign accepts POST /api/v1/uploads/presign
func (uc *UploadController) HandlePresign(c *fiber.Ctx) error {
	var req upload.PresignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	resp, err := uc.presign.Presign(c.Context(), req)
	if err != nil {
		if errors.Is(err, upload.ErrValidation) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		fiberlog.Errorf("[Upload] Presign error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create upload session"})
	}

	return c.JSON(resp)
}

// HandleFinalize accepts POST /api/v1/uploads/finalize
func (uc *UploadController) HandleFinalize(c *fiber.Ctx) error {
	var req upload.FinalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	up, err := uc.finalizer.Finalize(c.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrIntentGone):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "upload intent expired or already used"})
		case errors.Is(err, upload.ErrValidation):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		default:
			fiberlog.Errorf("[Upload] Finalize error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to finalize upload"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"upload_uuid": up.UUID,
		"status":      up.PublicStatus(),
	})
}

// HandleStatus accepts GET /api/v1/uploads/:uuid/status
func (uc *UploadController) HandleStatus(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "uuid missing"})
	}

	up, err := uc.uploads.FindUploadByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "upload not found"})
		}
		fiberlog.Errorf("[Upload] Status lookup error for %s: %v", uuid, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	return c.JSON(fiber.Map{
		"upload_uuid": up.UUID,
		"status":      up.PublicStatus(),
	})
}
