package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// PerfSummary aggregates crawl, oracle and cache counters for /stats.
type PerfSummary struct {
	Crawl CallSummary  `json:"crawl"`
	AI    CallSummary  `json:"ai"`
	Cache CacheSummary `json:"cache"`
}

type CallSummary struct {
	Count        uint64  `json:"count"`
	TotalSeconds float64 `json:"total_seconds"`
	AvgSeconds   float64 `json:"avg_seconds"`
}

type CacheSummary struct {
	Hits    float64 `json:"hits"`
	Misses  float64 `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func Summary() PerfSummary {
	return PerfSummary{
		Crawl: histogramSummary(CrawlDuration),
		AI:    histogramSummary(OracleDuration),
		Cache: cacheSummary(),
	}
}

func histogramSummary(vec *prometheus.HistogramVec) CallSummary {
	var s CallSummary
	collect(vec, func(m *dto.Metric) {
		if h := m.GetHistogram(); h != nil {
			s.Count += h.GetSampleCount()
			s.TotalSeconds += h.GetSampleSum()
		}
	})
	if s.Count > 0 {
		s.AvgSeconds = round2(s.TotalSeconds / float64(s.Count))
	}
	s.TotalSeconds = round2(s.TotalSeconds)
	return s
}

func cacheSummary() CacheSummary {
	var s CacheSummary
	collect(CacheHits, func(m *dto.Metric) { s.Hits += m.GetCounter().GetValue() })
	collect(CacheMisses, func(m *dto.Metric) { s.Misses += m.GetCounter().GetValue() })
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = round2(s.Hits / total * 100)
	}
	return s
}

func collect(c prometheus.Collector, fn func(*dto.Metric)) {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	for m := range ch {
		var out dto.Metric
		if err := m.Write(&out); err == nil {
			fn(&out)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
