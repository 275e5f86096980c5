package ingestion

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

// CSVOptions select the title and plot columns. Rows with fewer than
// MinColumns fields are skipped.
type CSVOptions struct {
	TitleColumn int
	PlotColumn  int
	MinColumns  int
}

// DefaultCSVOptions matches the movie plots dump: title in column 1, plot
// in column 7, eight columns per row.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{TitleColumn: 1, PlotColumn: 7, MinColumns: 8}
}

func (o CSVOptions) validate() error {
	if o.TitleColumn < 0 || o.PlotColumn < 0 {
		return fmt.Errorf("csv columns must be >= 0: %w", apperrors.ErrInvalidInput)
	}
	if need := max(o.TitleColumn, o.PlotColumn) + 1; o.MinColumns < need {
		return fmt.Errorf("csv minColumns %d is below the %d the selected columns need: %w",
			o.MinColumns, need, apperrors.ErrInvalidInput)
	}
	return nil
}

// CSVSource reads records from a CSV file with a header row. Quoted fields
// may contain commas and newlines.
type CSVSource struct {
	path   string
	open   func() (io.ReadCloser, error)
	opts   CSVOptions
	logger *slog.Logger
	stats  Stats
}

func NewCSVSource(path string, opts CSVOptions) (*CSVSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &CSVSource{
		path:   path,
		open:   func() (io.ReadCloser, error) { return os.Open(path) },
		opts:   opts,
		logger: slog.Default().With("component", "csv-source", "path", path),
	}, nil
}

// NewCSVReaderSource reads from r instead of a file. It can be iterated once.
func NewCSVReaderSource(r io.Reader, opts CSVOptions) (*CSVSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &CSVSource{
		path:   "reader",
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		opts:   opts,
		logger: slog.Default().With("component", "csv-source"),
	}, nil
}

func (s *CSVSource) Name() string { return "csv:" + s.path }

// Stats reports the rows read and skipped by the last Records call.
func (s *CSVSource) Stats() Stats { return s.stats }

func (s *CSVSource) Records(ctx context.Context, fn func(Record) error) error {
	s.stats = Stats{}
	f, err := s.open()
	if err != nil {
		return apperrors.IOf(err, "opening %s", s.path)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return s.readErr(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.stats.Skipped++
				s.logger.Warn("skipping malformed csv row", "line", parseErr.Line, "error", parseErr.Err)
				continue
			}
			return s.readErr(err)
		}
		if len(row) < s.opts.MinColumns {
			s.stats.Skipped++
			line, _ := r.FieldPos(0)
			s.logger.Debug("skipping short csv row", "line", line, "columns", len(row))
			continue
		}
		s.stats.Read++
		rec := Record{Title: row[s.opts.TitleColumn], Plot: row[s.opts.PlotColumn]}
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				break
			}
			return err
		}
	}
	s.logger.Info("csv source drained", "read", s.stats.Read, "skipped", s.stats.Skipped)
	return nil
}

func (s *CSVSource) readErr(err error) error {
	return apperrors.IOf(err, "reading %s", s.path)
}
