// Package service holds the operations exposed to the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/ingestion"
	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/internal/storage/sqlstore"
	"github.com/riskintel/backend/pkg/logger"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidURL = errors.New("url is required")
)

const (
	StatusExists     = "exists"
	StatusProcessing = models.SourceProcessing

	crawlTaskKind = "crawl"
)

type SourceStore interface {
	CreateSource(ctx context.Context, src *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	GetSourceByURL(ctx context.Context, url string) (*models.Source, error)
	ListSources(ctx context.Context) ([]models.Source, error)
	UpdateSourceURL(ctx context.Context, id, url string) error
	SaveSourceStatus(ctx context.Context, src *models.Source) error
	ClaimSourcesForCrawl(ctx context.Context) ([]models.Source, error)
	DeleteSource(ctx context.Context, id string) error
}

// SourceRunner performs one crawl of a source.
type SourceRunner interface {
	ProcessSource(ctx context.Context, sourceID string) ingestion.Result
}

// Submitter starts work in the background.
type Submitter interface {
	Submit(kind, subject string, fn func(ctx context.Context) error) (string, error)
}

type Sources struct {
	store  SourceStore
	runner SourceRunner
	tasks  Submitter
}

func NewSources(store SourceStore, runner SourceRunner, tasks Submitter) *Sources {
	return &Sources{store: store, runner: runner, tasks: tasks}
}

type RegisterResult struct {
	SourceID string `json:"source_id"`
	Status   string `json:"status"`
	TaskID   string `json:"task_id,omitempty"`
	Message  string `json:"message"`
}

// Register adds a source and starts its first crawl in the background. A URL
// that is already registered is reported as existing and not crawled.
func (s *Sources) Register(ctx context.Context, rawURL string) (*RegisterResult, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return nil, ErrInvalidURL
	}

	existing, err := s.store.GetSourceByURL(ctx, url)
	if err == nil {
		return &RegisterResult{SourceID: existing.ID, Status: StatusExists, Message: "Source already exists"}, nil
	}
	if !errors.Is(err, sqlstore.ErrNotFound) {
		return nil, err
	}

	src := &models.Source{ID: uuid.NewString(), URL: url, Status: models.SourceProcessing}
	if err := s.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}

	logger.Info("Source registered", zap.String("source_id", src.ID), zap.String("url", url))

	taskID, err := s.start(src)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{
		SourceID: src.ID,
		Status:   StatusProcessing,
		TaskID:   taskID,
		Message:  "Source added, processing in background",
	}, nil
}

// Update replaces the source URL. Stored items are kept.
func (s *Sources) Update(ctx context.Context, id, rawURL string) (string, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return "", ErrInvalidURL
	}
	if err := s.store.UpdateSourceURL(ctx, id, url); err != nil {
		return "", translate(err)
	}
	return url, nil
}

// Retry resets the source to processing and crawls it again from scratch.
func (s *Sources) Retry(ctx context.Context, id string) (*RegisterResult, error) {
	src, err := s.store.GetSource(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	src.Status = models.SourceProcessing
	src.ErrorMessage = nil
	if err := s.store.SaveSourceStatus(ctx, src); err != nil {
		return nil, translate(err)
	}

	taskID, err := s.start(src)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{SourceID: src.ID, Status: StatusProcessing, TaskID: taskID, Message: "Retry started in background"}, nil
}

// BatchCrawl starts a crawl for every source not already processing and
// returns how many were started.
func (s *Sources) BatchCrawl(ctx context.Context) (int, error) {
	claimed, err := s.store.ClaimSourcesForCrawl(ctx)
	if err != nil {
		return 0, err
	}

	started := 0
	for i := range claimed {
		if _, err := s.start(&claimed[i]); err != nil {
			logger.Error("Failed to start crawl", zap.String("source_id", claimed[i].ID), zap.Error(err))
			s.abandon(ctx, &claimed[i], err)
			continue
		}
		started++
	}

	logger.Info("Batch crawl started", zap.Int("sources", started))
	return started, nil
}

func (s *Sources) List(ctx context.Context) ([]models.Source, error) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []models.Source{}
	}
	return sources, nil
}

// Delete removes the source and all of its items.
func (s *Sources) Delete(ctx context.Context, id string) error {
	return translate(s.store.DeleteSource(ctx, id))
}

// CrawlNow registers url when needed and crawls it in the caller's goroutine.
func (s *Sources) CrawlNow(ctx context.Context, rawURL string) (*models.Source, ingestion.Result, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return nil, ingestion.Result{}, ErrInvalidURL
	}

	src, err := s.store.GetSourceByURL(ctx, url)
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
		src = &models.Source{ID: uuid.NewString(), URL: url, Status: models.SourceProcessing}
		if err := s.store.CreateSource(ctx, src); err != nil {
			return nil, ingestion.Result{}, err
		}
	case err != nil:
		return nil, ingestion.Result{}, err
	default:
		src.Status = models.SourceProcessing
		src.ErrorMessage = nil
		if err := s.store.SaveSourceStatus(ctx, src); err != nil {
			return nil, ingestion.Result{}, err
		}
	}

	res := s.runner.ProcessSource(ctx, src.ID)

	updated, err := s.store.GetSource(ctx, src.ID)
	if err != nil {
		return nil, res, err
	}
	return updated, res, nil
}

func (s *Sources) start(src *models.Source) (string, error) {
	id := src.ID
	return s.tasks.Submit(crawlTaskKind, src.URL, func(ctx context.Context) error {
		res := s.runner.ProcessSource(ctx, id)
		if res.Status == models.SourceError {
			return fmt.Errorf("source %s: %s", id, res.Message)
		}
		return nil
	})
}

// abandon records why a claimed source never started.
func (s *Sources) abandon(ctx context.Context, src *models.Source, cause error) {
	msg := cause.Error()
	src.Status = models.SourceError
	src.ErrorMessage = &msg
	if err := s.store.SaveSourceStatus(ctx, src); err != nil {
		logger.Error("Failed to release claimed source", zap.String("source_id", src.ID), zap.Error(err))
	}
}

func translate(err error) error {
	if errors.Is(err, sqlstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
