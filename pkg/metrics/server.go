package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartServer serves /metrics on its own port for processes without an API
// router, such as the batch indexer. The returned function shuts it down.
func StartServer(port int) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}

// ObserveIndex publishes the size of a freshly loaded or built index.
func (m *Metrics) ObserveIndex(documents, terms, postingLists int, took time.Duration) {
	m.IndexDocuments.Set(float64(documents))
	m.IndexTerms.Set(float64(terms))
	m.IndexPostingLists.Set(float64(postingLists))
	m.IndexLoadDuration.Set(took.Seconds())
}
