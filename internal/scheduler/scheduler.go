// Package scheduler runs the periodic batch crawl and the sweep that releases
// records left in processing by a crashed or killed run.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/riskintel/backend/pkg/logger"
)

const StaleMessage = "Stale processing state reset"

type BatchCrawler interface {
	BatchCrawl(ctx context.Context) (int, error)
}

type StaleStore interface {
	ResetStaleSources(ctx context.Context, before time.Time, message string) (int64, error)
	ResetStaleTasks(ctx context.Context, before time.Time) (int64, error)
}

// Config holds standard five-field cron specs. An empty spec disables its job.
type Config struct {
	BatchCrawl string
	StaleSweep string
	StaleAfter time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	crawler BatchCrawler
	store   StaleStore
	cfg     Config
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, crawler BatchCrawler, store StaleStore) (*Scheduler, error) {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Hour
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	log := cronLogger{logger.Named("scheduler").Sugar()}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		crawler: crawler,
		store:   store,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		ctx:     ctx,
		cancel:  cancel,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"batch_crawl", cfg.BatchCrawl, s.RunBatchCrawl},
		{"stale_sweep", cfg.StaleSweep, s.Sweep},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		run, name := j.run, j.name
		if _, err := c.AddFunc(j.spec, func() {
			if err := run(s.ctx); err != nil {
				logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			}
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid %s schedule %q: %w", name, j.spec, err)
		}
		logger.Info("Scheduled job registered", zap.String("job", name), zap.String("schedule", j.spec))
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) RunBatchCrawl(ctx context.Context) error {
	n, err := s.crawler.BatchCrawl(ctx)
	if err != nil {
		return fmt.Errorf("batch crawl: %w", err)
	}
	logger.Info("Scheduled batch crawl started", zap.Int("sources", n))
	return nil
}

// Sweep fails sources and contract tasks that have been processing for
// longer than StaleAfter.
func (s *Scheduler) Sweep(ctx context.Context) error {
	before := s.now().Add(-s.cfg.StaleAfter)

	sources, err := s.store.ResetStaleSources(ctx, before, StaleMessage)
	if err != nil {
		return err
	}
	tasks, err := s.store.ResetStaleTasks(ctx, before)
	if err != nil {
		return err
	}

	if sources > 0 || tasks > 0 {
		logger.Warn("Stale processing records reset",
			zap.Int64("sources", sources),
			zap.Int64("tasks", tasks),
			zap.Time("before", before),
		)
	}
	return nil
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
