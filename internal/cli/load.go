package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

// defaultLoadQueries mixes every operator so the run covers each evaluation
// path, including one malformed query that must come back 400.
var defaultLoadQueries = []string{
	"love",
	"war AND peace",
	"title:ring",
	"detective NOT murder",
	"space OR ocean",
	"love ADJ/2 story",
	"murder NEAR/5 detective",
	"(king OR queen) AND castle",
	`"haunted" house`,
	"plot:robot AND NOT title:robot",
	"NEAR",
}

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

type loadStats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	zeroHits  atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies: make([]time.Duration, 0, 100000),
		statuses:  make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statuses[status]++
	s.mu.Unlock()
}

func newLoadCommand() *cobra.Command {
	cfg := loadConfig{}
	var queryFile string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Drive concurrent search traffic at a running searcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Queries = defaultLoadQueries
			if queryFile != "" {
				data, err := os.ReadFile(queryFile)
				if err != nil {
					return fmt.Errorf("reading queries: %w", err)
				}
				cfg.Queries = nonEmptyLines(string(data))
				if len(cfg.Queries) == 0 {
					return fmt.Errorf("%s has no queries", queryFile)
				}
			}
			if cfg.Concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== plotsearch load test ===")
			fmt.Fprintf(out, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.Duration)
			fmt.Fprintf(out, "Queries:     %d unique\n\n", len(cfg.Queries))

			stats := runLoad(cmd.Context(), cfg)
			return printLoadReport(out, stats, cfg.Duration)
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the search service")
	cmd.Flags().IntVarP(&cfg.Concurrency, "concurrency", "c", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().IntVar(&cfg.Limit, "limit", 10, "results requested per query")
	cmd.Flags().StringVar(&queryFile, "queries", "", "file with one query per line")
	return cmd
}

func runLoad(parent context.Context, cfg loadConfig) *loadStats {
	if parent == nil {
		parent = context.Background()
	}
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := cfg.Queries[next%len(cfg.Queries)]
				next++
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					strings.TrimRight(cfg.BaseURL, "/"), url.QueryEscape(query), cfg.Limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.record(0, 0, err)
					return
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.record(elapsed, 0, err)
					continue
				}
				var body struct {
					TotalHits int `json:"total_hits"`
				}
				if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&body) == nil && body.TotalHits == 0 {
					stats.zeroHits.Add(1)
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(elapsed, resp.StatusCode, nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func printLoadReport(out io.Writer, stats *loadStats, duration time.Duration) error {
	total := stats.total.Load()
	fmt.Fprintln(out, "=== Results ===")
	fmt.Fprintf(out, "Total Requests:  %d\n", total)
	fmt.Fprintf(out, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(out, "Failed:          %d\n", stats.failed.Load())
	fmt.Fprintf(out, "Zero-hit:        %d\n", stats.zeroHits.Load())
	if total > 0 {
		fmt.Fprintf(out, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statuses))
	for code := range stats.statuses {
		codes = append(codes, code)
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(out, "\n=== Latency ===")
		fmt.Fprintf(out, "Min:    %s\n", latencies[0])
		fmt.Fprintf(out, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(out, "P%-5g %s\n", p, latencyPercentile(latencies, p))
		}
		fmt.Fprintf(out, "Max:    %s\n", latencies[len(latencies)-1])
	}

	sort.Ints(codes)
	fmt.Fprintln(out, "\n=== Status Codes ===")
	for _, code := range codes {
		stats.mu.Lock()
		n := stats.statuses[code]
		stats.mu.Unlock()
		fmt.Fprintf(out, "  %d: %d\n", code, n)
	}

	if total == 0 {
		return fmt.Errorf("no requests completed; is the searcher running?")
	}
	return nil
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
