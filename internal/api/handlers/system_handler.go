package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/internal/siteconfig"
	"github.com/riskintel/backend/internal/tasks"
	"github.com/riskintel/backend/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	supervisor *tasks.Supervisor
	sites      siteconfig.Provider
	db         Pinger
}

func NewSystemHandler(supervisor *tasks.Supervisor, sites siteconfig.Provider, db Pinger) *SystemHandler {
	return &SystemHandler{
		supervisor: supervisor,
		sites:      sites,
		db:         db,
	}
}

func (h *SystemHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"performance": metrics.Summary(),
		"tasks":       h.supervisor.Stats(),
	})
}

func (h *SystemHandler) ListTasks(c *fiber.Ctx) error {
	return c.JSON(h.supervisor.Recent())
}

func (h *SystemHandler) GetTask(c *fiber.Ctx) error {
	task, ok := h.supervisor.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}
	return c.JSON(task)
}

func (h *SystemHandler) ReloadSites(c *fiber.Ctx) error {
	if err := h.sites.Reload(); err != nil {
		logger.Error("Failed to reload site configuration", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reload site configuration",
		})
	}
	return c.JSON(fiber.Map{
		"message":  "Site configuration reloaded",
		"keywords": len(h.sites.Keywords()),
	})
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *SystemHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.Warn("Readiness check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
	})
}
