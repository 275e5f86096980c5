package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics?top=N. top bounds each ranking and
// defaults to DefaultTopN; values above MaxTopN are capped.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top, err := parseTop(r.URL.Query().Get("top"))
	if err != nil {
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.StatsTop(top))
}

func parseTop(raw string) (int, error) {
	if raw == "" {
		return DefaultTopN, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "top must be a positive integer, got %q", raw)
	}
	return min(n, MaxTopN), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
