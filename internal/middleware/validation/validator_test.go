package validation

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{
		MaxUploadSize:     64,
		AllowedExtensions: []string{".pdf", ".docx", ".txt", ".md"},
	}))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }
	app.Post("/api/v1/sources", ok)
	app.Put("/api/v1/sources/:id", ok)
	app.Post("/api/v1/sources/:id/retry", ok)
	app.Post("/api/v1/contracts", ok)
	app.Post("/api/v1/contracts/scan", ok)
	return app
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestSourceBodies(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"valid create", jsonRequest("POST", "/api/v1/sources", `{"url":"https://gov.uz/en/news"}`), fiber.StatusNoContent},
		{"valid update", jsonRequest("PUT", "/api/v1/sources/abc", `{"url":" http://mofcom.gov.cn/ "}`), fiber.StatusNoContent},
		{"missing url", jsonRequest("POST", "/api/v1/sources", `{}`), fiber.StatusBadRequest},
		{"blank url", jsonRequest("POST", "/api/v1/sources", `{"url":"  "}`), fiber.StatusBadRequest},
		{"bad scheme", jsonRequest("POST", "/api/v1/sources", `{"url":"ftp://example.com"}`), fiber.StatusBadRequest},
		{"script", jsonRequest("PUT", "/api/v1/sources/abc", `{"url":"javascript:alert(1)"}`), fiber.StatusBadRequest},
		{"malformed json", jsonRequest("POST", "/api/v1/sources", `{"url":`), fiber.StatusBadRequest},
		{"retry has no body", httptest.NewRequest("POST", "/api/v1/sources/abc/retry", nil), fiber.StatusNoContent},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestUnsupportedContentType(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/sources", strings.NewReader("url=x"))
	req.Header.Set("Content-Type", "text/plain")

	resp, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUploads(t *testing.T) {
	app := newApp()

	tests := []struct {
		name     string
		path     string
		filename string
		size     int
		want     int
	}{
		{"docx accepted", "/api/v1/contracts", "a.docx", 10, fiber.StatusNoContent},
		{"scan markdown", "/api/v1/contracts/scan", "a.MD", 10, fiber.StatusNoContent},
		{"exe rejected", "/api/v1/contracts", "a.exe", 10, fiber.StatusBadRequest},
		{"too large", "/api/v1/contracts", "a.pdf", 65, fiber.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(uploadRequest(t, tt.path, tt.filename, bytes.Repeat([]byte("x"), tt.size)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("note", "x"))
		require.NoError(t, w.Close())
		req := httptest.NewRequest("POST", "/api/v1/contracts", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}
