package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/api"
	"github.com/riskintel/backend/internal/app"
	"github.com/riskintel/backend/internal/scheduler"
	"github.com/riskintel/backend/pkg/config"
	appLogger "github.com/riskintel/backend/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting risk intelligence API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(context.Background(), cfg, app.Options{Browser: true, WatchSites: true})
	if err != nil {
		appLogger.Fatal("Failed to build application", zap.Error(err))
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.Config{
			BatchCrawl: cfg.Scheduler.BatchCrawl,
			StaleSweep: cfg.Scheduler.StaleSweep,
			StaleAfter: cfg.Scheduler.StaleAfter,
		}, application.Sources, application.Store)
		if err != nil {
			appLogger.Fatal("Failed to create scheduler", zap.Error(err))
		}
		// Anything still processing was orphaned by the previous process.
		if err := sched.Sweep(ctx); err != nil {
			appLogger.Warn("Startup sweep failed", zap.Error(err))
		}
		sched.Start()
	}

	server := api.New(api.Config{
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:       cfg.Server.BodyLimit,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Development:     cfg.Server.Development,
		RateLimitPerMin: cfg.Server.RateLimitPerMin,
		AccessLog:       true,
	}, api.Deps{
		Sources:      application.Sources,
		Intelligence: application.Intelligence,
		Contracts:    application.Contracts,
		Supervisor:   application.Supervisor,
		Sites:        application.Sites,
		DB:           application.Store,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	appLogger.Info("Server shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			appLogger.Warn("Scheduler did not stop in time", zap.Error(err))
		}
	}
	if err := application.Close(shutdownCtx); err != nil {
		appLogger.Warn("Shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
