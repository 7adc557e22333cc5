package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CrawlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskintel_crawl_duration_seconds",
			Help:    "Page fetch duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"fetcher"},
	)

	CrawlTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_crawl_total",
			Help: "Total page fetches",
		},
		[]string{"fetcher", "status"},
	)

	OracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskintel_oracle_duration_seconds",
			Help:    "Oracle call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	OracleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_oracle_calls_total",
			Help: "Total oracle calls",
		},
		[]string{"operation", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache"},
	)

	ItemsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskintel_items_accepted_total",
			Help: "Intelligence items accepted by the quality filter",
		},
	)

	ItemsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_items_rejected_total",
			Help: "Candidates rejected, by reason",
		},
		[]string{"reason"},
	)

	SourceRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_source_runs_total",
			Help: "Source crawl runs by terminal status",
		},
		[]string{"status"},
	)

	ContractTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_contract_tasks_total",
			Help: "Contract analysis tasks by terminal status",
		},
		[]string{"status"},
	)

	ContractRisks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_contract_risks_total",
			Help: "Contract risks persisted, by level",
		},
		[]string{"level"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskintel_llm_tokens_used_total",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)
)

var collectors = []prometheus.Collector{
	CrawlDuration,
	CrawlTotal,
	OracleDuration,
	OracleCalls,
	CacheHits,
	CacheMisses,
	ItemsAccepted,
	ItemsRejected,
	SourceRuns,
	ContractTasks,
	ContractRisks,
	LLMTokensUsed,
}

var registerOnce sync.Once

// Init registers every collector with the default registry. Later calls are no-ops.
func Init() {
	registerOnce.Do(func() {
		for _, c := range collectors {
			prometheus.MustRegister(c)
		}
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
