package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
)

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

type Options struct {
	DefaultLimit int
	MaxResults   int
	Defaults     ranker.Params
	// DroppedLists is the number of postings lists discarded at load.
	DroppedLists int
	Metrics      *metrics.Metrics
}

type Handler struct {
	executor SearchExecutor
	index    *index.Index
	cache    *cache.QueryCache
	sink     analytics.Sink
	opts     Options
	logger   *slog.Logger
}

// New wires the search API. queryCache and sink may be nil.
func New(exec SearchExecutor, idx *index.Index, queryCache *cache.QueryCache, sink analytics.Sink, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	if opts.Defaults == (ranker.Params{}) {
		opts.Defaults = ranker.DefaultParams()
	}
	return &Handler{
		executor: exec,
		index:    idx,
		cache:    queryCache,
		sink:     sink,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=&limit=&k1=&b=&w_title=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, req)
		})
	} else {
		result, err = h.executor.Execute(ctx, req)
	}
	latency := time.Since(start)

	event := analytics.SearchEvent{
		Query:     req.Query,
		CacheHit:  cacheHit,
		Params:    req.Params,
		LatencyMs: float64(latency.Microseconds()) / 1000,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		event.Outcome = analytics.OutcomeError
		message := "search failed"
		if errors.Is(err, apperrors.ErrQuerySyntax) {
			event.Outcome = analytics.OutcomeSyntaxError
			message = err.Error()
			log.Info("rejected malformed query", "query", req.Query, "error", err)
		} else {
			log.Error("search execution failed", "query", req.Query, "error", err)
		}
		h.record(event, latency)
		h.writeError(w, status, message)
		return
	}

	event.Terms = result.Terms
	event.TotalHits = result.TotalHits
	event.Returned = len(result.Results)
	event.Outcome = analytics.OutcomeHit
	if result.TotalHits == 0 {
		event.Outcome = analytics.OutcomeZeroResult
	}
	h.record(event, latency)

	log.Info("search completed",
		"query", req.Query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", event.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseRequest(r *http.Request) (executor.Request, error) {
	q := r.URL.Query()
	req := executor.Request{
		Query:  q.Get("q"),
		Limit:  h.opts.DefaultLimit,
		Params: h.opts.Defaults,
	}
	if req.Query == "" {
		return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required")
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		req.Limit = min(n, h.opts.MaxResults)
	}

	params := []struct {
		name     string
		dst      *float64
		min, max float64
	}{
		{"k1", &req.Params.K1, 0, 100},
		{"b", &req.Params.B, 0, 1},
		{"w_title", &req.Params.TitleWeight, 0, 1000},
	}
	for _, p := range params {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < p.min || v > p.max {
			return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"%s must be a number between %g and %g", p.name, p.min, p.max)
		}
		*p.dst = v
	}
	return req, nil
}

func (h *Handler) record(event analytics.SearchEvent, latency time.Duration) {
	if m := h.opts.Metrics; m != nil {
		m.SearchQueriesTotal.WithLabelValues(string(event.Outcome)).Inc()
		status := "miss"
		if event.CacheHit {
			status = "hit"
		}
		m.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	}
	if h.sink != nil {
		h.sink.Track(event)
	}
}

// Document serves GET /api/v1/documents/{id}.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be a non-negative integer")
		return
	}
	doc, err := h.index.Forward.Document(index.DocID(id))
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "document not found")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

type indexStatsResponse struct {
	index.Stats
	DroppedLists int `json:"dropped_lists"`
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, indexStatsResponse{
		Stats:        h.index.Stats(),
		DroppedLists: h.opts.DroppedLists,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
