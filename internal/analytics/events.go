// Package analytics records what users search for. The searcher tracks one
// SearchEvent per request into a Sink: either a Collector that batches events
// to Kafka, or an Aggregator directly when Kafka is disabled. The Aggregator
// also consumes the Kafka topic and serves summary statistics.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
)

type Outcome string

const (
	OutcomeHit         Outcome = "hit"
	OutcomeZeroResult  Outcome = "zero_result"
	OutcomeSyntaxError Outcome = "syntax_error"
	OutcomeError       Outcome = "error"
)

type SearchEvent struct {
	Query     string        `json:"query"`
	Terms     []string      `json:"terms,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	TotalHits int           `json:"total_hits"`
	Returned  int           `json:"returned"`
	LatencyMs float64       `json:"latency_ms"`
	CacheHit  bool          `json:"cache_hit"`
	Params    ranker.Params `json:"params"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

// Sink accepts search events without blocking the request path.
type Sink interface {
	Track(event SearchEvent)
}
