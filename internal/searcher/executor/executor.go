// Package executor runs a query through the engine stage by stage and
// renders the top results for clients.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/tracing"
)

const (
	DefaultTitleSnippet = 100
	DefaultPlotSnippet  = 300
	ellipsis            = "..."
)

// Request is one search call. Limit must be positive.
type Request struct {
	Query  string        `json:"query"`
	Limit  int           `json:"limit"`
	Params ranker.Params `json:"params"`
}

// Hit is a rendered result.
type Hit struct {
	DocID       index.DocID `json:"doc_id"`
	Score       float64     `json:"score"`
	Title       string      `json:"title"`
	PlotSnippet string      `json:"plot_snippet"`
}

type SearchResult struct {
	Query     string        `json:"query"`
	Terms     []string      `json:"terms"`
	TotalHits int           `json:"total_hits"`
	Results   []Hit         `json:"results"`
	Params    ranker.Params `json:"params"`
}

type Options struct {
	TitleSnippet int
	PlotSnippet  int
	Metrics      *metrics.Metrics
}

type Executor struct {
	engine  *engine.Engine
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(eng *engine.Engine, opts Options) *Executor {
	if opts.TitleSnippet <= 0 {
		opts.TitleSnippet = DefaultTitleSnippet
	}
	if opts.PlotSnippet <= 0 {
		opts.PlotSnippet = DefaultPlotSnippet
	}
	return &Executor{
		engine:  eng,
		opts:    opts,
		metrics: opts.Metrics,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Execute parses, evaluates, ranks, and hydrates req. Syntax errors are
// returned unchanged so callers can map them to 400.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	span.SetAttr("query", req.Query)
	defer func() {
		span.End()
		span.Log(ctx, e.logger)
	}()

	var plan *parser.QueryPlan
	err := e.stage(ctx, "parse", func() error {
		var err error
		plan, err = parser.Parse(req.Query)
		return err
	})
	if err != nil {
		return nil, err
	}

	var matches []index.DocID
	err = e.stage(ctx, "evaluate", func() error {
		var err error
		matches, err = e.engine.Evaluate(plan.RPN)
		return err
	})
	if err != nil {
		return nil, err
	}

	var ranked []ranker.ScoredDoc
	_ = e.stage(ctx, "rank", func() error {
		ranked = e.engine.Ranker().Rank(matches, plan.Terms, req.Params)
		return nil
	})

	result := &SearchResult{
		Query:     req.Query,
		Terms:     plan.Terms,
		TotalHits: len(ranked),
		Params:    req.Params,
	}
	_ = e.stage(ctx, "hydrate", func() error {
		result.Results = e.hydrate(ranked, req.Limit)
		return nil
	})
	span.SetAttr("total_hits", result.TotalHits)

	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(result.TotalHits))
	}
	logger.FromContext(ctx).Debug("query executed",
		"query", req.Query,
		"terms", plan.Terms,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
	)
	return result, nil
}

func (e *Executor) stage(ctx context.Context, name string, fn func() error) error {
	_, span := tracing.StartChildSpan(ctx, name)
	start := time.Now()
	err := fn()
	span.End()
	if e.metrics != nil {
		e.metrics.SearchStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return err
}

func (e *Executor) hydrate(ranked []ranker.ScoredDoc, limit int) []Hit {
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	hits := make([]Hit, 0, limit)
	for _, sd := range ranked[:limit] {
		doc, err := e.engine.Index().Forward.Document(sd.DocID)
		if err != nil {
			e.logger.Warn("ranked document missing from forward store", "doc_id", sd.DocID)
			continue
		}
		plot := Truncate(doc.Plot, e.opts.PlotSnippet)
		if len(doc.Plot) > e.opts.PlotSnippet {
			plot += ellipsis
		}
		hits = append(hits, Hit{
			DocID:       sd.DocID,
			Score:       sd.Score,
			Title:       Truncate(doc.Title, e.opts.TitleSnippet),
			PlotSnippet: plot,
		})
	}
	return hits
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
// Invalid bytes in the result are replaced with U+FFFD.
func Truncate(s string, n int) string {
	if len(s) > n {
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s
}
