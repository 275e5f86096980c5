package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

func TestValidate(t *testing.T) {
	limits := Limits{MaxTitleLength: 10, MaxPlotLength: 20}
	tests := []struct {
		name   string
		rec    ingestion.Record
		reason string
	}{
		{"valid", ingestion.Record{Title: "Heat", Plot: "a heist"}, ""},
		{"title only", ingestion.Record{Title: "Heat"}, ""},
		{"plot only", ingestion.Record{Plot: "a heist"}, ""},
		{"blank", ingestion.Record{Title: "  ", Plot: "\n"}, ReasonEmpty},
		{"long title", ingestion.Record{Title: strings.Repeat("x", 11), Plot: "p"}, ReasonTitleTooLong},
		{"long plot", ingestion.Record{Title: "t", Plot: strings.Repeat("p", 21)}, ReasonPlotTooLong},
		{"both long", ingestion.Record{Title: strings.Repeat("x", 11), Plot: strings.Repeat("p", 21)}, ReasonTitleTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rec, limits)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", verr.Reason, tt.reason)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("validation error should wrap ErrInvalidInput")
			}
		})
	}
}

func TestValidateZeroLimitsDisableLengthChecks(t *testing.T) {
	rec := ingestion.Record{Title: strings.Repeat("x", 5000), Plot: "p"}
	if err := Validate(rec, Limits{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := Validate(ingestion.Record{Title: strings.Repeat("x", 3), Plot: strings.Repeat("y", 3)}, Limits{MaxTitleLength: 1, MaxPlotLength: 1})
	want := "plot: plot must be at most 1 bytes; title: title must be at most 1 bytes"
	if err == nil || err.Error() != want {
		t.Fatalf("Error() = %v, want %q", err, want)
	}
}
