package security

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaders(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HeadersConfig
		hsts    bool
		connect string
	}{
		{
			name:    "production",
			cfg:     HeadersConfig{AllowedOrigins: []string{"https://ui.example.com"}},
			hsts:    true,
			connect: "connect-src 'self' https://ui.example.com wss://ui.example.com;",
		},
		{
			name:    "development wildcard",
			cfg:     HeadersConfig{AllowedOrigins: []string{"*"}, IsDevelopment: true},
			connect: "connect-src 'self';",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(HeadersMiddleware(tt.cfg))
			app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)

			assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Contains(t, resp.Header.Get("Content-Security-Policy"), tt.connect)
			assert.Equal(t, tt.hsts, resp.Header.Get("Strict-Transport-Security") != "")
		})
	}
}
