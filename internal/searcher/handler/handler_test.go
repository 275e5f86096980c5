package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
)

type stubExecutor struct {
	mu   sync.Mutex
	last executor.Request
	res  *executor.SearchResult
	err  error
}

func (s *stubExecutor) Execute(_ context.Context, req executor.Request) (*executor.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	return s.res, s.err
}

type recordingSink struct {
	events []analytics.SearchEvent
}

func (r *recordingSink) Track(e analytics.SearchEvent) { r.events = append(r.events, e) }

func newTestHandler(exec SearchExecutor, sink analytics.Sink) *Handler {
	idx := index.New()
	idx.AddDocument(index.Document{ID: 0, Title: "The Quick Fox", Plot: "fox jumps"})
	idx.BuildSkipPointers()
	return New(exec, idx, nil, sink, Options{
		DefaultLimit: 20,
		MaxResults:   50,
		Defaults:     ranker.Params{K1: 1.2, B: 0.75, TitleWeight: 5},
		DroppedLists: 3,
		Metrics:      metrics.NewForTest(),
	})
}

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchAppliesDefaultsAndOverrides(t *testing.T) {
	exec := &stubExecutor{res: &executor.SearchResult{TotalHits: 1, Results: []executor.Hit{{DocID: 0}}}}
	h := newTestHandler(exec, nil)

	rec := get(h.Search, "/api/v1/search?q=fox")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, executor.Request{Query: "fox", Limit: 20, Params: ranker.Params{K1: 1.2, B: 0.75, TitleWeight: 5}}, exec.last)

	rec = get(h.Search, "/api/v1/search?q=fox&limit=500&k1=2&b=0.5&w_title=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, executor.Request{Query: "fox", Limit: 50, Params: ranker.Params{K1: 2, B: 0.5, TitleWeight: 1}}, exec.last)
}

func TestSearchRejectsBadParameters(t *testing.T) {
	h := newTestHandler(&stubExecutor{res: &executor.SearchResult{}}, nil)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=fox&limit=0",
		"/api/v1/search?q=fox&limit=abc",
		"/api/v1/search?q=fox&b=1.5",
		"/api/v1/search?q=fox&k1=-1",
		"/api/v1/search?q=fox&w_title=x",
	} {
		rec := get(h.Search, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchSyntaxErrorIs400AndTracked(t *testing.T) {
	sink := &recordingSink{}
	exec := &stubExecutor{err: apperrors.Syntaxf("operator NEAR needs two operands")}
	h := newTestHandler(exec, sink)

	rec := get(h.Search, "/api/v1/search?q=NEAR")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body["error"], "NEAR")

	require.Len(t, sink.events, 1)
	assert.Equal(t, analytics.OutcomeSyntaxError, sink.events[0].Outcome)
}

func TestSearchTracksOutcome(t *testing.T) {
	sink := &recordingSink{}
	exec := &stubExecutor{res: &executor.SearchResult{Terms: []string{"zebra"}}}
	h := newTestHandler(exec, sink)

	rec := get(h.Search, "/api/v1/search?q=zebra")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.events, 1)
	e := sink.events[0]
	assert.Equal(t, analytics.OutcomeZeroResult, e.Outcome)
	assert.Equal(t, []string{"zebra"}, e.Terms)
	assert.False(t, e.CacheHit)
}

func TestDocument(t *testing.T) {
	h := newTestHandler(&stubExecutor{}, nil)
	r := chi.NewRouter()
	r.Get("/api/v1/documents/{id}", h.Document)

	tests := []struct {
		target string
		status int
	}{
		{"/api/v1/documents/0", http.StatusOK},
		{"/api/v1/documents/7", http.StatusNotFound},
		{"/api/v1/documents/-1", http.StatusBadRequest},
		{"/api/v1/documents/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
		assert.Equal(t, tt.status, rec.Code, tt.target)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/0", nil))
	var doc index.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "The Quick Fox", doc.Title)
}

func TestIndexStatsAndDisabledCache(t *testing.T) {
	h := newTestHandler(&stubExecutor{}, nil)

	rec := get(h.IndexStats, "/api/v1/index/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.EqualValues(t, 1, stats["documents"])
	assert.EqualValues(t, 3, stats["dropped_lists"])

	rec = get(h.CacheStats, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
