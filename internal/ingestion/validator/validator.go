// Package validator rejects source records that should not enter the
// index and names the reason so rejections can be counted.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

const (
	ReasonEmpty         = "empty"
	ReasonTitleTooLong  = "title_too_long"
	ReasonPlotTooLong   = "plot_too_long"
	DefaultMaxTitleSize = 1024
	DefaultMaxPlotSize  = 1 << 20
)

type Limits struct {
	MaxTitleLength int
	MaxPlotLength  int
}

func DefaultLimits() Limits {
	return Limits{MaxTitleLength: DefaultMaxTitleSize, MaxPlotLength: DefaultMaxPlotSize}
}

// ValidationError holds per-field failure messages. Reason is the first
// failure in field order and is used as a metrics label.
type ValidationError struct {
	Reason string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, field := range names {
		parts[i] = field + ": " + e.Fields[field]
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Validate rejects a record whose title and plot are both blank, or whose
// fields exceed the limits. A zero limit disables that check.
func Validate(rec ingestion.Record, limits Limits) error {
	errs := &ValidationError{Fields: make(map[string]string)}

	if strings.TrimSpace(rec.Title) == "" && strings.TrimSpace(rec.Plot) == "" {
		errs.Reason = ReasonEmpty
		errs.Fields["record"] = "title and plot are both empty"
	}
	if limits.MaxTitleLength > 0 && len(rec.Title) > limits.MaxTitleLength {
		if errs.Reason == "" {
			errs.Reason = ReasonTitleTooLong
		}
		errs.Fields["title"] = fmt.Sprintf("title must be at most %d bytes", limits.MaxTitleLength)
	}
	if limits.MaxPlotLength > 0 && len(rec.Plot) > limits.MaxPlotLength {
		if errs.Reason == "" {
			errs.Reason = ReasonPlotTooLong
		}
		errs.Fields["plot"] = fmt.Sprintf("plot must be at most %d bytes", limits.MaxPlotLength)
	}
	if len(errs.Fields) > 0 {
		return errs
	}
	return nil
}
