package validation

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	Prefix              string
	MaxURLLength        int
	MaxUploadSize       int64
	AllowedContentTypes []string
	AllowedExtensions   []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.Prefix == "" {
		cfg.Prefix = "/api/v1"
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = 2048
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	sources := cfg.Prefix + "/sources"
	contracts := cfg.Prefix + "/contracts"

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodPost && method != fiber.MethodPut {
			return c.Next()
		}

		if contentType := c.Get(fiber.HeaderContentType); contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := strings.TrimSuffix(c.Path(), "/")

		if isSourceBody(method, path, sources) {
			var req struct {
				URL *string `json:"url"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if req.URL == nil || strings.TrimSpace(*req.URL) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "URL is required and must be a string",
				})
			}

			u := strings.TrimSpace(*req.URL)
			if len(u) > cfg.MaxURLLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "URL exceeds maximum length",
				})
			}
			if containsXSS(u) {
				cfg.Logger.Warn("Potential XSS attempt", zap.String("ip", c.IP()), zap.String("url", u))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid URL format",
				})
			}
			if !isValidURL(u) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid URL format",
				})
			}
		}

		if method == fiber.MethodPost && (path == contracts || path == contracts+"/scan") {
			fh, err := c.FormFile("file")
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "A file field is required",
				})
			}
			if fh.Size > cfg.MaxUploadSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "File exceeds maximum size",
				})
			}
			if len(cfg.AllowedExtensions) > 0 && !allowedExtension(fh.Filename, cfg.AllowedExtensions) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Unsupported file type. Allowed: " + strings.Join(cfg.AllowedExtensions, ", "),
				})
			}
		}

		return c.Next()
	}
}

// isSourceBody reports whether the request carries a source URL: creating a
// source or updating one by id. Retry and batch-crawl carry no body.
func isSourceBody(method, path, sources string) bool {
	if method == fiber.MethodPost {
		return path == sources
	}
	rest, ok := strings.CutPrefix(path, sources+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func allowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	return true
}
