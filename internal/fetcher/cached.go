package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/riskintel/backend/pkg/logger"
)

type PageCache interface {
	GetPage(ctx context.Context, url string) (string, bool, error)
	SetPage(ctx context.Context, url, markdown string) error
}

// CachedFetcher serves pages from cache and stores fresh successful fetches.
// Cache failures are logged and never fail the fetch.
type CachedFetcher struct {
	next  Fetcher
	cache PageCache
}

func NewCachedFetcher(next Fetcher, cache PageCache) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache}
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if page, ok, err := c.cache.GetPage(ctx, url); err != nil {
		logger.Warn("Page cache read failed", zap.String("url", url), zap.Error(err))
	} else if ok && page != "" {
		return page, nil
	}

	page, err := c.next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if err := c.cache.SetPage(ctx, url, page); err != nil {
		logger.Warn("Page cache write failed", zap.String("url", url), zap.Error(err))
	}
	return page, nil
}
