// Package router wires the search service routes and applies the middleware
// chain (RequestID → AccessLog → Metrics → CORS, then RateLimit → Timeout
// on the API routes).
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/middleware"
)

type Deps struct {
	Search         *handler.Handler
	Analytics      *analytics.Handler
	Health         *health.Checker
	RequestTimeout time.Duration
	CORSOrigins    []string

	// Metrics enables request metrics and the /metrics route when set.
	Metrics *metrics.Metrics

	// Limiter throttles /api/v1 per client when set.
	Limiter *middleware.Limiter
}

// New builds the search service HTTP handler.
//
// Route table:
//
//	GET    /api/v1/search              → ranked search
//	GET    /api/v1/documents/{id}      → stored document
//	GET    /api/v1/index/stats         → index statistics
//	GET    /api/v1/cache/stats         → result cache counters
//	POST   /api/v1/cache/invalidate    → flush result cache
//	GET    /api/v1/analytics           → search analytics (when enabled)
//	GET    /health/live, /health/ready → probes
//	GET    /metrics                    → Prometheus scrape
//
// Health and scrape routes sit outside the rate limit and the timeout.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.Use(middleware.CORS(d.CORSOrigins))

	if d.Health != nil {
		r.Get("/health/live", d.Health.LiveHandler())
		r.Get("/health/ready", d.Health.ReadyHandler())
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Limiter))
		r.Use(middleware.Timeout(d.RequestTimeout))

		r.Get("/search", d.Search.Search)
		r.Get("/documents/{id}", d.Search.Document)
		r.Get("/index/stats", d.Search.IndexStats)
		r.Get("/cache/stats", d.Search.CacheStats)
		r.Post("/cache/invalidate", d.Search.CacheInvalidate)
		if d.Analytics != nil {
			r.Get("/analytics", d.Analytics.Stats)
		}
	})
	return r
}
