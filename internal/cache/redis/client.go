package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

const (
	pagePrefix       = "page:"
	extractionPrefix = "extraction:"
)

// Client caches fetched page markdown and oracle extraction results.
type Client struct {
	client        *redis.Client
	pageTTL       time.Duration
	extractionTTL time.Duration
}

func NewClient(addr, password string, db int, pageTTL, extractionTTL time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client, pageTTL: pageTTL, extractionTTL: extractionTTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetPage returns the cached markdown for url.
func (c *Client) GetPage(ctx context.Context, url string) (string, bool, error) {
	data, err := c.client.Get(ctx, pagePrefix+utils.HashString(url)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("page").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get page cache: %w", err)
	}

	metrics.CacheHits.WithLabelValues("page").Inc()
	logger.Debug("Page cache hit", zap.String("url", url))
	return data, true, nil
}

func (c *Client) SetPage(ctx context.Context, url, markdown string) error {
	if err := c.client.Set(ctx, pagePrefix+utils.HashString(url), markdown, c.pageTTL).Err(); err != nil {
		return fmt.Errorf("failed to set page cache: %w", err)
	}
	return nil
}

// GetExtraction decodes the cached extraction for key into dst.
func (c *Client) GetExtraction(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, extractionPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("extraction").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get extraction cache: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal extraction: %w", err)
	}

	metrics.CacheHits.WithLabelValues("extraction").Inc()
	logger.Debug("Extraction cache hit", zap.String("key", key))
	return true, nil
}

func (c *Client) SetExtraction(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction: %w", err)
	}

	if err := c.client.Set(ctx, extractionPrefix+key, data, c.extractionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set extraction cache: %w", err)
	}
	return nil
}

// Clear drops every page and extraction entry.
func (c *Client) Clear(ctx context.Context) error {
	for _, pattern := range []string{pagePrefix + "*", extractionPrefix + "*"} {
		iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to iterate cache keys: %w", err)
		}
	}

	logger.Info("Crawl caches cleared")
	return nil
}
