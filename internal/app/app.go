// Package app builds the component graph shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/cache/redis"
	"github.com/riskintel/backend/internal/contract"
	"github.com/riskintel/backend/internal/fetcher"
	"github.com/riskintel/backend/internal/ingestion"
	"github.com/riskintel/backend/internal/llm"
	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/internal/service"
	"github.com/riskintel/backend/internal/siteconfig"
	"github.com/riskintel/backend/internal/storage/sqlstore"
	"github.com/riskintel/backend/internal/tasks"
	"github.com/riskintel/backend/pkg/config"
	"github.com/riskintel/backend/pkg/logger"
)

const taskHistory = 200

type Options struct {
	// Browser starts the headless browser for dynamic sites.
	Browser bool
	// WatchSites reloads the site configuration when its file changes.
	WatchSites bool
}

type Application struct {
	Config *config.Config

	Store      *sqlstore.Client
	Cache      *redis.Client
	Sites      *siteconfig.FileProvider
	Browser    *fetcher.BrowserFetcher
	Supervisor *tasks.Supervisor

	Sources      *service.Sources
	Intelligence *service.Intelligence
	Contracts    *service.Contracts
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*Application, error) {
	metrics.Init()

	store, err := sqlstore.NewClient(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	a := &Application{Config: cfg, Store: store}

	if cfg.Redis.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cache, err := redis.NewClient(addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.URLTTL, cfg.Redis.ExtractionTTL)
		if err != nil {
			logger.Warn("Redis unavailable, caching disabled", zap.String("addr", addr), zap.Error(err))
		} else {
			a.Cache = cache
		}
	}

	a.Sites = siteconfig.NewFileProvider(cfg.Sites.Path)
	if opts.WatchSites && cfg.Sites.Watch {
		if err := a.Sites.Watch(ctx); err != nil {
			logger.Warn("Site config watch disabled", zap.String("path", cfg.Sites.Path), zap.Error(err))
		}
	}

	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	engine := oracle.NewEngine(llmClient, a.Sites, oracle.Options{
		ClassifyTimeout:     cfg.LLM.ClassifyTimeout,
		ExtractTimeout:      cfg.LLM.ExtractTimeout,
		ContractTimeout:     cfg.LLM.ContractTimeout,
		ContractTemperature: cfg.LLM.ContractTemperature,
	})
	if a.Cache != nil {
		engine = engine.WithCache(a.Cache)
	}

	sourceFetcher, articleFetcher := a.buildFetchers(ctx, opts.Browser)

	processor := ingestion.NewProcessor(store, sourceFetcher, engine, a.Sites, ingestion.Options{
		ArticleFetcher: articleFetcher,
		PerCycleCap:    cfg.Pipeline.PerCycleCap,
		FanOut:         cfg.Pipeline.FanOut,
		RelevanceScore: cfg.Pipeline.RelevanceScore,
		KeywordFilter:  cfg.Pipeline.KeywordFilter,
	})
	analyzer := contract.NewAnalyzer(engine, contract.Options{
		MinTextLength:     cfg.Contract.MinTextLength,
		ChunkSize:         cfg.Contract.ChunkSize,
		MaxChunks:         cfg.Contract.MaxChunks,
		LocalRuleFallback: cfg.Contract.LocalRuleFallback,
	})

	a.Supervisor = tasks.New(cfg.Server.WorkerConcurrency, taskHistory)
	a.Sources = service.NewSources(store, processor, a.Supervisor)
	a.Intelligence = service.NewIntelligence(store)
	a.Contracts = service.NewContracts(store, analyzer, cfg.Contract.MinTextLength)

	return a, nil
}

func (a *Application) buildFetchers(ctx context.Context, withBrowser bool) (source, article fetcher.Fetcher) {
	cfg := a.Config.Crawler

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})

	if withBrowser && cfg.BrowserEnabled && !cfg.LowMemoryMode {
		browser := fetcher.NewBrowserFetcher(fetcher.BrowserOptions{
			Headless:          cfg.Headless,
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: cfg.NavigationTimeout,
			SettleDelay:       cfg.SettleDelay,
		})
		if err := browser.Start(ctx); err != nil {
			logger.Warn("Browser unavailable, dynamic sites fall back to HTTP", zap.Error(err))
		} else {
			a.Browser = browser
		}
	}

	// Listing pages change between runs, so only article pages are cached.
	source = fetcher.NewRouter(httpFetcher, a.Browser, cfg.BrowserDomains, cfg.LowMemoryMode)
	article = source
	if a.Cache != nil {
		article = fetcher.NewCachedFetcher(source, a.Cache)
	}
	return source, article
}

// Close drains background tasks, then releases everything New opened.
func (a *Application) Close(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.Supervisor != nil {
		keep(a.Supervisor.Shutdown(ctx))
	}
	if a.Browser != nil {
		keep(a.Browser.Shutdown(ctx))
	}
	if a.Sites != nil {
		keep(a.Sites.Close())
	}
	if a.Cache != nil {
		keep(a.Cache.Close())
	}
	keep(a.Store.Close())

	return firstErr
}
