// Package indexer builds an index from an ingestion source and persists it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
)

// ProgressFunc is called after every source record with the running counts.
type ProgressFunc func(indexed, rejected int)

type BuilderOptions struct {
	Limits   validator.Limits
	Metrics  *metrics.Metrics
	Progress ProgressFunc
}

// BuildStats summarises one build.
type BuildStats struct {
	Source       string         `json:"source"`
	Documents    int            `json:"documents"`
	Rejected     map[string]int `json:"rejected"`
	Terms        int            `json:"terms"`
	PostingLists int            `json:"posting_lists"`
	Duration     time.Duration  `json:"duration"`
}

// Builder assigns dense ascending doc ids to accepted records and feeds them
// to an index. It is single-use and not safe for concurrent use.
type Builder struct {
	idx      *index.Index
	opts     BuilderOptions
	logger   *slog.Logger
	rejected map[string]int
	nextID   index.DocID
	frozen   bool
}

func NewBuilder(opts BuilderOptions) *Builder {
	return &Builder{
		idx:      index.New(),
		opts:     opts,
		logger:   slog.Default().With("component", "indexer"),
		rejected: make(map[string]int),
	}
}

var errFrozen = errors.New("builder already finished")

// Add validates rec and indexes it under the next doc id. A rejected
// record returns a *validator.ValidationError and consumes no id.
func (b *Builder) Add(rec ingestion.Record) (index.DocID, error) {
	if b.frozen {
		return 0, errFrozen
	}
	if err := validator.Validate(rec, b.opts.Limits); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			b.rejected[verr.Reason]++
			if b.opts.Metrics != nil {
				b.opts.Metrics.DocsRejectedTotal.WithLabelValues(verr.Reason).Inc()
			}
		}
		return 0, err
	}
	id := b.nextID
	b.idx.AddDocument(index.Document{ID: id, Title: rec.Title, Plot: rec.Plot})
	b.nextID++
	if b.opts.Metrics != nil {
		b.opts.Metrics.DocsIndexedTotal.Inc()
	}
	return id, nil
}

// Ingest adds every record of src. Validation failures are logged and
// skipped; source errors abort.
func (b *Builder) Ingest(ctx context.Context, src ingestion.Source) error {
	b.logger.Info("ingesting", "source", src.Name())
	err := src.Records(ctx, func(rec ingestion.Record) error {
		if _, err := b.Add(rec); err != nil {
			if errors.Is(err, errFrozen) {
				return err
			}
			b.logger.Debug("record rejected", "title", rec.Title, "error", err)
		}
		if b.opts.Progress != nil {
			b.opts.Progress(int(b.nextID), b.rejectedTotal())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", src.Name(), err)
	}
	return nil
}

// Finish builds skip pointers and returns the frozen index. Further Add
// calls fail.
func (b *Builder) Finish() *index.Index {
	if !b.frozen {
		b.idx.BuildSkipPointers()
		b.frozen = true
	}
	return b.idx
}

func (b *Builder) rejectedTotal() int {
	var n int
	for _, c := range b.rejected {
		n += c
	}
	return n
}

// Build ingests src, freezes the index, and saves it under basePath.
func Build(ctx context.Context, src ingestion.Source, basePath string, opts BuilderOptions) (*index.Index, BuildStats, error) {
	start := time.Now()
	b := NewBuilder(opts)
	stats := BuildStats{Source: src.Name()}

	if err := b.Ingest(ctx, src); err != nil {
		return nil, stats, err
	}
	idx := b.Finish()

	if err := segment.Save(basePath, idx); err != nil {
		if opts.Metrics != nil {
			opts.Metrics.IndexSavesTotal.WithLabelValues("error").Inc()
		}
		return nil, stats, fmt.Errorf("saving index to %s: %w", basePath, err)
	}

	s := idx.Stats()
	stats.Documents = s.Documents
	stats.Terms = s.Terms
	stats.PostingLists = s.PostingLists
	stats.Rejected = b.rejected
	stats.Duration = time.Since(start)
	if opts.Metrics != nil {
		opts.Metrics.IndexSavesTotal.WithLabelValues("success").Inc()
		opts.Metrics.IndexBuildDuration.Set(stats.Duration.Seconds())
	}
	b.logger.Info("index built",
		"base", basePath,
		"docs", stats.Documents,
		"terms", stats.Terms,
		"posting_lists", stats.PostingLists,
		"rejected", b.rejectedTotal(),
		"duration", stats.Duration,
	)
	return idx, stats, nil
}
