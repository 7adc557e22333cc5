package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/tasks"
	"github.com/riskintel/backend/pkg/logger"
)

const eventBuffer = 64

// EventsHandler streams background task transitions over a websocket.
type EventsHandler struct {
	supervisor *tasks.Supervisor
}

func NewEventsHandler(supervisor *tasks.Supervisor) *EventsHandler {
	return &EventsHandler{
		supervisor: supervisor,
	}
}

// Upgrade rejects plain HTTP requests to the events endpoint.
func (h *EventsHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *EventsHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Events connection established")

	events, unsubscribe := h.supervisor.Subscribe(eventBuffer)
	defer func() {
		unsubscribe()
		c.Close()
		logger.Info("Events connection closed")
	}()

	if err := h.send(c, "stats", h.supervisor.Stats()); err != nil {
		return
	}

	// The client never sends anything useful; reading only notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.send(c, "shutdown", nil)
				return
			}
			if err := h.send(c, "task", ev.Task); err != nil {
				logger.Warn("Failed to send task event", zap.Error(err))
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *EventsHandler) send(c *websocket.Conn, msgType string, payload interface{}) error {
	msg := map[string]interface{}{
		"type": msgType,
	}
	if payload != nil {
		msg["data"] = payload
	}
	return c.WriteJSON(msg)
}
