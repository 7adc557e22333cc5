// Package api assembles the HTTP server: middleware, handlers and routes.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/riskintel/backend/internal/api/handlers"
	"github.com/riskintel/backend/internal/contract"
	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/internal/middleware/ratelimit"
	"github.com/riskintel/backend/internal/middleware/security"
	"github.com/riskintel/backend/internal/middleware/validation"
	"github.com/riskintel/backend/internal/service"
	"github.com/riskintel/backend/internal/siteconfig"
	"github.com/riskintel/backend/internal/tasks"
	"github.com/riskintel/backend/pkg/logger"
)

const Prefix = "/api/v1"

type Config struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	BodyLimit       int
	AllowedOrigins  []string
	Development     bool
	RateLimitPerMin int
	// AccessLog enables the per-request access log line.
	AccessLog bool
}

type Deps struct {
	Sources      *service.Sources
	Intelligence *service.Intelligence
	Contracts    *service.Contracts
	Supervisor   *tasks.Supervisor
	Sites        siteconfig.Provider
	DB           handlers.Pinger
}

type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

func New(cfg Config, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BodyLimit:    cfg.BodyLimit,
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(fiberlogger.New())
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: origins,
		IsDevelopment:  cfg.Development,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimitPerMin,
		Logger:               logger.Named("ratelimit"),
	})

	sourceHandler := handlers.NewSourceHandler(deps.Sources)
	intelligenceHandler := handlers.NewIntelligenceHandler(deps.Intelligence)
	contractHandler := handlers.NewContractHandler(deps.Contracts)
	eventsHandler := handlers.NewEventsHandler(deps.Supervisor)
	systemHandler := handlers.NewSystemHandler(deps.Supervisor, deps.Sites, deps.DB)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group(Prefix)

	api.Get("/health", systemHandler.Health)
	api.Get("/ready", systemHandler.Ready)
	api.Get("/events", eventsHandler.Upgrade, websocket.New(eventsHandler.HandleConnection))

	api.Use(limiter.Middleware())
	api.Use(validation.Middleware(validation.Config{
		Prefix:            Prefix,
		MaxUploadSize:     int64(cfg.BodyLimit),
		AllowedExtensions: contract.SupportedExtensions,
		Logger:            logger.Named("validation"),
	}))

	api.Post("/sources", sourceHandler.CreateSource)
	api.Get("/sources", sourceHandler.ListSources)
	api.Post("/sources/batch-crawl", sourceHandler.BatchCrawl)
	api.Put("/sources/:id", sourceHandler.UpdateSource)
	api.Delete("/sources/:id", sourceHandler.DeleteSource)
	api.Post("/sources/:id/retry", sourceHandler.RetrySource)

	api.Get("/intelligence", intelligenceHandler.ListItems)
	api.Get("/intelligence/export", intelligenceHandler.Export)
	api.Post("/intelligence/batch-delete", intelligenceHandler.BatchDelete)
	api.Delete("/intelligence/:id", intelligenceHandler.DeleteItem)

	api.Post("/contracts", contractHandler.UploadContract)
	api.Post("/contracts/scan", contractHandler.ScanContract)
	api.Get("/contracts", contractHandler.ListContracts)
	api.Get("/contracts/:id", contractHandler.GetContract)
	api.Delete("/contracts/:id", contractHandler.DeleteContract)

	api.Get("/stats", systemHandler.Stats)
	api.Get("/tasks", systemHandler.ListTasks)
	api.Get("/tasks/:id", systemHandler.GetTask)
	api.Post("/sites/reload", systemHandler.ReloadSites)

	return &Server{App: app, limiter: limiter}
}

func (s *Server) Listen(addr string) error {
	return s.App.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.App.ShutdownWithContext(ctx)
}
