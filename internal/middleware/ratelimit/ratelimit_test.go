package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(rl *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestLimitsPerClient(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2})
	defer rl.Stop()
	app := newApp(rl)

	get := func(clientID string) int {
		req := httptest.NewRequest("GET", "/", nil)
		if clientID != "" {
			req.Header.Set("X-Client-ID", clientID)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, get("a"))
	assert.Equal(t, fiber.StatusOK, get("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, get("a"))

	assert.Equal(t, fiber.StatusOK, get("b"))
}

func TestEvictIdle(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 10})
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	assert.True(t, rl.allow("old"))

	now = now.Add(11 * time.Minute)
	assert.True(t, rl.allow("fresh"))

	assert.Equal(t, 1, rl.evictIdle())
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Contains(t, rl.clients, "fresh")
	assert.NotContains(t, rl.clients, "old")
}
