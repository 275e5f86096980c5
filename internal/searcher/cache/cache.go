// Package cache memoises rendered search results in Redis. Keys are derived
// from the parsed query so that spacing and quoting variants share an entry.
// Redis failures never fail a search: the cache falls through to compute,
// and a circuit breaker stops calling Redis while it is unhealthy.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/resilience"
)

const (
	keyPrefix      = "search:"
	defaultTimeout = 50 * time.Millisecond
	breakerName    = "redis-cache"
)

// Store is the subset of the Redis client the cache uses. Get returns an
// error satisfying IsMiss when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Options struct {
	TTL time.Duration
	// Timeout bounds each Redis round trip.
	Timeout time.Duration
	// IsMiss reports whether a Get error means "not cached".
	IsMiss  func(error) bool
	Breaker resilience.CircuitBreakerConfig
	Metrics *metrics.Metrics
}

type Stats struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Errors       int64  `json:"errors"`
	Total        int64  `json:"total"`
	HitRate      string `json:"hit_rate"`
	BreakerState string `json:"breaker_state"`
}

type QueryCache struct {
	store   Store
	opts    Options
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	failed  atomic.Int64
}

func New(store Store, opts Options) *QueryCache {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.IsMiss == nil {
		opts.IsMiss = func(error) bool { return false }
	}
	m := opts.Metrics
	userHook := opts.Breaker.OnStateChange
	opts.Breaker.OnStateChange = func(name string, from, to resilience.State) {
		if m != nil {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
		if userHook != nil {
			userHook(name, from, to)
		}
	}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(resilience.StateClosed))
	}
	return &QueryCache{
		store:   store,
		opts:    opts,
		breaker: resilience.NewCircuitBreaker(breakerName, opts.Breaker),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached result for req, or calls compute and
// caches its result. Concurrent misses for the same key share one compute
// call. The boolean reports a cache hit. Queries that do not parse bypass
// the cache so compute can report the syntax error.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req executor.Request,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key, err := Key(req)
	if err != nil {
		result, err := compute(ctx)
		return result, false, err
	}
	if result, ok := c.get(ctx, key); ok {
		result.Query = req.Query
		return result, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	// fn may outlive a timed-out call, so the value travels over a channel.
	found := make(chan string, 1)
	err := c.call(ctx, "cache-get", func(ctx context.Context) error {
		data, err := c.store.Get(ctx, key)
		if err != nil {
			if c.opts.IsMiss(err) {
				return nil
			}
			return err
		}
		found <- data
		return nil
	})
	var data string
	if err == nil && len(found) > 0 {
		data = <-found
	}
	if data == "" {
		c.miss()
		return nil, false
	}

	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheHitsTotal.Inc()
	}
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	_ = c.call(ctx, "cache-set", func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, c.opts.TTL)
	})
}

// call runs fn through the breaker with a per-call deadline. Failures are
// logged and counted but never returned to the search path.
func (c *QueryCache) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opts.Timeout, name, fn)
	})
	if err != nil {
		c.failed.Add(1)
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("redis call failed", "op", name, "error", err)
		}
	}
	return err
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheMissesTotal.Inc()
	}
}

// Invalidate deletes every cached result. It bypasses the breaker so an
// operator can flush after Redis recovers.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.failed.Load(),
		BreakerState: c.breaker.State().String(),
	}
	s.Total = s.Hits + s.Misses
	var rate float64
	if s.Total > 0 {
		rate = float64(s.Hits) / float64(s.Total) * 100
	}
	s.HitRate = fmt.Sprintf("%.1f%%", rate)
	return s
}

// Key derives the cache key for req from its postfix form, so queries that
// differ only in whitespace, quoting, or redundant parentheses collide.
func Key(req executor.Request) (string, error) {
	plan, err := parser.Parse(req.Query)
	if err != nil {
		return "", err
	}
	raw := fmt.Sprintf("%s|limit=%d|k1=%g|b=%g|w=%g",
		strings.Join(parser.Strings(plan.RPN), " "),
		req.Limit, req.Params.K1, req.Params.B, req.Params.TitleWeight,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16]), nil
}
