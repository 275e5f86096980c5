// Package metrics defines the Prometheus collectors for index builds, index
// loads, query serving, the result cache, and search analytics, and exposes
// an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the search engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	SearchStageDuration *prometheus.HistogramVec

	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec

	DocsIndexedTotal   prometheus.Counter
	DocsRejectedTotal  *prometheus.CounterVec
	IndexSavesTotal    *prometheus.CounterVec
	IndexBuildDuration prometheus.Gauge

	IndexDocuments       prometheus.Gauge
	IndexTerms           prometheus.Gauge
	IndexPostingLists    prometheus.Gauge
	IndexDroppedLists    prometheus.Counter
	IndexLoadDuration    prometheus.Gauge
	AnalyticsEventsTotal *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the Prometheus default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, syntax_error, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching documents per search query before truncation.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000, 10000},
			},
		),
		SearchStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_stage_duration_seconds",
				Help:    "Time spent per query stage (parse, evaluate, rank, hydrate).",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stage"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents added to the index.",
			},
		),
		DocsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_rejected_total",
				Help: "Source records rejected by validation, by reason.",
			},
			[]string{"reason"},
		),
		IndexSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_saves_total",
				Help: "Total index save operations by status.",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_build_duration_seconds",
				Help: "Duration of the most recent index build.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents in the loaded index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms in the loaded index.",
			},
		),
		IndexPostingLists: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_posting_lists",
				Help: "Number of (term, field) postings lists in the loaded index.",
			},
		),
		IndexDroppedLists: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_dropped_posting_lists_total",
				Help: "Postings lists discarded as corrupt during index load.",
			},
		),
		IndexLoadDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_load_duration_seconds",
				Help: "Duration of the most recent index load.",
			},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Search analytics events by outcome (published, dropped, failed, consumed).",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SearchStageDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
		m.DocsIndexedTotal,
		m.DocsRejectedTotal,
		m.IndexSavesTotal,
		m.IndexBuildDuration,
		m.IndexDocuments,
		m.IndexTerms,
		m.IndexPostingLists,
		m.IndexDroppedLists,
		m.IndexLoadDuration,
		m.AnalyticsEventsTotal,
	)

	return m
}

// NewForTest registers collectors on a private registry.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
