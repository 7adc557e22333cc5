package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryAggregatesAcrossLabels(t *testing.T) {
	CrawlDuration.Reset()
	OracleDuration.Reset()
	CacheHits.Reset()
	CacheMisses.Reset()

	CrawlDuration.WithLabelValues("http").Observe(1)
	CrawlDuration.WithLabelValues("browser").Observe(3)
	OracleDuration.WithLabelValues("extract").Observe(2)
	CacheHits.WithLabelValues("page").Add(3)
	CacheMisses.WithLabelValues("extraction").Add(1)

	s := Summary()
	assert.Equal(t, uint64(2), s.Crawl.Count)
	assert.Equal(t, 4.0, s.Crawl.TotalSeconds)
	assert.Equal(t, 2.0, s.Crawl.AvgSeconds)
	assert.Equal(t, uint64(1), s.AI.Count)
	assert.Equal(t, 75.0, s.Cache.HitRate)
}

func TestSummaryEmpty(t *testing.T) {
	CrawlDuration.Reset()
	OracleDuration.Reset()
	CacheHits.Reset()
	CacheMisses.Reset()

	s := Summary()
	assert.Zero(t, s.Crawl.AvgSeconds)
	assert.Zero(t, s.Cache.HitRate)
}
