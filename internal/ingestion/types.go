// Package ingestion reads source records for an index build. A Source
// yields {title, plot} pairs in a stable order; the builder assigns dense
// document ids in that order.
package ingestion

import (
	"context"
	"errors"
)

// Record is one source document before it receives a doc id.
type Record struct {
	Title string `json:"title"`
	Plot  string `json:"plot"`
}

// Source streams records to fn in a deterministic order. Returning
// ErrStop from fn ends the stream early without error.
type Source interface {
	Name() string
	Records(ctx context.Context, fn func(Record) error) error
}

// ErrStop stops iteration from inside a Records callback.
var ErrStop = errors.New("stop ingestion")

// Stats describes one pass over a source.
type Stats struct {
	Read    int `json:"read"`
	Skipped int `json:"skipped"`
}

// SliceSource serves records held in memory.
type SliceSource []Record

func (s SliceSource) Name() string { return "memory" }

func (s SliceSource) Records(ctx context.Context, fn func(Record) error) error {
	for _, rec := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}
