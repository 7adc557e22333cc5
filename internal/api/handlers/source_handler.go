package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/service"
	"github.com/riskintel/backend/pkg/logger"
)

type SourceHandler struct {
	sources *service.Sources
}

func NewSourceHandler(sources *service.Sources) *SourceHandler {
	return &SourceHandler{
		sources: sources,
	}
}

type sourceRequest struct {
	URL string `json:"url"`
}

func (h *SourceHandler) CreateSource(c *fiber.Ctx) error {
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	res, err := h.sources.Register(c.Context(), req.URL)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "URL is required",
			})
		}
		logger.Error("Failed to register source", zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add source",
		})
	}

	status := fiber.StatusAccepted
	if res.Status == service.StatusExists {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(res)
}

func (h *SourceHandler) ListSources(c *fiber.Ctx) error {
	sources, err := h.sources.List(c.Context())
	if err != nil {
		logger.Error("Failed to list sources", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sources",
		})
	}
	return c.JSON(sources)
}

func (h *SourceHandler) UpdateSource(c *fiber.Ctx) error {
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id := c.Params("id")
	url, err := h.sources.Update(c.Context(), id, req.URL)
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "URL is required"})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Source not found"})
	case err != nil:
		logger.Error("Failed to update source", zap.String("source_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update source"})
	}

	return c.JSON(fiber.Map{
		"message": "Source updated",
		"url":     url,
	})
}

func (h *SourceHandler) DeleteSource(c *fiber.Ctx) error {
	id := c.Params("id")
	err := h.sources.Delete(c.Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Source not found"})
	case err != nil:
		logger.Error("Failed to delete source", zap.String("source_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete source"})
	}

	return c.JSON(fiber.Map{"message": "Source deleted"})
}

func (h *SourceHandler) RetrySource(c *fiber.Ctx) error {
	id := c.Params("id")
	res, err := h.sources.Retry(c.Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Source not found"})
	case err != nil:
		logger.Error("Failed to retry source", zap.String("source_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retry source"})
	}

	return c.Status(fiber.StatusAccepted).JSON(res)
}

func (h *SourceHandler) BatchCrawl(c *fiber.Ctx) error {
	count, err := h.sources.BatchCrawl(c.Context())
	if err != nil {
		logger.Error("Failed to start batch crawl", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start batch crawl",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Batch crawl started",
		"count":   count,
	})
}
