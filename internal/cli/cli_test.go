package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/executor"
)

func writeIndex(t *testing.T) string {
	t.Helper()
	idx := index.New()
	idx.AddDocument(index.Document{ID: 0, Title: "The Quick Fox", Plot: "fox jumps"})
	idx.AddDocument(index.Document{ID: 1, Title: "Slow Turtle", Plot: "quick brown fox"})
	idx.BuildSkipPointers()
	base := filepath.Join(t.TempDir(), "movies")
	require.NoError(t, segment.Save(base, idx))
	return base
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	base := writeIndex(t)

	out, err := run(t, "query", "-i", base, "-q", "title:quick")
	require.NoError(t, err)
	assert.Contains(t, out, "1 matching documents")
	assert.Contains(t, out, "The Quick Fox")

	out, err = run(t, "query", "-i", base, "-q", "fox", "--json", "--limit", "1")
	require.NoError(t, err)
	var result executor.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.TotalHits)
	assert.Len(t, result.Results, 1)
}

func TestQueryCommandSyntaxError(t *testing.T) {
	base := writeIndex(t)
	_, err := run(t, "query", "-i", base, "-q", "fox NEAR")
	require.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	base := writeIndex(t)

	out, err := run(t, "inspect", "-i", base)
	require.NoError(t, err)
	assert.Contains(t, out, "documents:      2")

	out, err = run(t, "inspect", "-i", base, "--term", "Fox")
	require.NoError(t, err)
	assert.Contains(t, out, `term "fox"`)
	assert.Contains(t, out, "plot: df=2")
	assert.Contains(t, out, "title: df=1")

	_, err = run(t, "inspect", "-i", base, "--term", "dragon")
	require.Error(t, err)
}

func TestVerifyCommand(t *testing.T) {
	base := writeIndex(t)
	out, err := run(t, "verify", "-i", base, "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: no postings lists dropped")

	_, err = run(t, "verify", "-i", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLoadCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "NEAR" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_hits":0,"results":[]}`))
	}))
	defer srv.Close()

	out, err := run(t, "load", "--url", srv.URL, "-c", "2", "--duration", "100ms")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Results ===")
	assert.Contains(t, out, "200:")
	assert.Contains(t, out, "400:")
}

func TestLatencyPercentile(t *testing.T) {
	lat := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), latencyPercentile(lat, 50))
	assert.Equal(t, time.Duration(10), latencyPercentile(lat, 99))
	assert.Zero(t, latencyPercentile(nil, 50))
}

func TestNonEmptyLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, nonEmptyLines("a\n\n  b c  \n"))
	assert.Empty(t, nonEmptyLines(strings.Repeat("\n", 3)))
}
