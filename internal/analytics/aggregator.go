package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
)

// latencyWindow is how many recent latencies percentiles are computed over.
const latencyWindow = 10000

const (
	DefaultTopN = 10
	MaxTopN     = 100
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	SyntaxErrorCount  int64        `json:"syntax_error_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	TopTerms          []QueryCount `json:"top_terms"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over search events. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	syntaxErrors      int64
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	termCounts        map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewAggregator(m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		termCounts:        make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		metrics:           m,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records one event.
func (a *Aggregator) Track(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	switch event.Outcome {
	case OutcomeZeroResult:
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	case OutcomeSyntaxError:
		a.syntaxErrors++
	}
	a.queryCounts[event.Query]++
	for _, term := range event.Terms {
		a.termCounts[term]++
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

// Handler decodes Kafka messages into events. Undecodable messages are
// logged and acknowledged so one bad payload cannot stall the partition.
func (a *Aggregator) Handler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			a.logger.Warn("discarding undecodable analytics event", "error", err)
			return nil
		}
		a.Track(event)
		if a.metrics != nil {
			a.metrics.AnalyticsEventsTotal.WithLabelValues("consumed").Inc()
		}
		return nil
	}
}

// Stats reports the aggregate with DefaultTopN entries per ranking.
func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(DefaultTopN)
}

// StatsTop reports the aggregate with at most n entries in each of the
// top queries, top terms, and zero-result rankings.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
		SyntaxErrorCount: a.syntaxErrors,
	}
	if len(a.latencies) > 0 {
		sorted := append([]float64(nil), a.latencies...)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, n)
	stats.TopTerms = topN(a.termCounts, n)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, n)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.totalSearches) / elapsed
	}
	return stats
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// topN orders by count, then key, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
