package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/service"
	"github.com/riskintel/backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type IntelligenceHandler struct {
	intelligence *service.Intelligence
}

func NewIntelligenceHandler(intelligence *service.Intelligence) *IntelligenceHandler {
	return &IntelligenceHandler{
		intelligence: intelligence,
	}
}

func (h *IntelligenceHandler) ListItems(c *fiber.Ctx) error {
	items, err := h.intelligence.List(c.Context())
	if err != nil {
		logger.Error("Failed to list intelligence", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list intelligence",
		})
	}
	return c.JSON(items)
}

func (h *IntelligenceHandler) DeleteItem(c *fiber.Ctx) error {
	id := c.Params("id")
	err := h.intelligence.Delete(c.Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Intelligence not found"})
	case err != nil:
		logger.Error("Failed to delete intelligence", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete intelligence"})
	}

	return c.JSON(fiber.Map{"message": "Intelligence deleted"})
}

func (h *IntelligenceHandler) BatchDelete(c *fiber.Ctx) error {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ids must not be empty",
		})
	}

	count, err := h.intelligence.BatchDelete(c.Context(), req.IDs)
	if err != nil {
		logger.Error("Failed to batch delete intelligence", zap.Int("ids", len(req.IDs)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete intelligence",
		})
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Deleted %d items", count),
		"count":   count,
	})
}

func (h *IntelligenceHandler) Export(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.intelligence.Export(c.Context(), &buf); err != nil {
		logger.Error("Failed to export intelligence", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export intelligence",
		})
	}

	c.Attachment(fmt.Sprintf("intelligence-%s.xlsx", time.Now().UTC().Format("20060102-150405")))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(buf.Bytes())
}
