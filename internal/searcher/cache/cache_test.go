package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/resilience"
)

var errMiss = errors.New("miss")

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
	gets atomic.Int64
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.gets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", errMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = string(value)
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newCache(store Store) *QueryCache {
	return New(store, Options{
		TTL:    time.Minute,
		IsMiss: func(err error) bool { return errors.Is(err, errMiss) },
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold:    2,
			ResetTimeout:        time.Hour,
			HalfOpenMaxRequests: 1,
		},
		Metrics: metrics.NewForTest(),
	})
}

func request(q string) executor.Request {
	return executor.Request{Query: q, Limit: 10, Params: ranker.DefaultParams()}
}

func counting(calls *atomic.Int64) func(context.Context) (*executor.SearchResult, error) {
	return func(context.Context) (*executor.SearchResult, error) {
		calls.Add(1)
		return &executor.SearchResult{Query: "computed", TotalHits: 2, Results: []executor.Hit{{DocID: 1, Title: "a"}}}, nil
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := newCache(newMemStore())
	var calls atomic.Int64

	first, hit, err := c.GetOrCompute(context.Background(), request("quick fox"), counting(&calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, first.TotalHits)

	second, hit, err := c.GetOrCompute(context.Background(), request("quick   fox"), counting(&calls))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "quick   fox", second.Query)
	assert.Equal(t, first.Results, second.Results)
	assert.EqualValues(t, 1, calls.Load())

	s := c.Stats()
	assert.EqualValues(t, 1, s.Hits)
	assert.EqualValues(t, 1, s.Misses)
	assert.Equal(t, "50.0%", s.HitRate)
	assert.Equal(t, "closed", s.BreakerState)
}

func TestKeyNormalisation(t *testing.T) {
	same := [][2]string{
		{"quick fox", "quick AND fox"},
		{"(fox)", "fox"},
		{`"fox"`, "fox"},
		{"Quick", "quick"},
	}
	for _, pair := range same {
		a, err := Key(request(pair[0]))
		require.NoError(t, err)
		b, err := Key(request(pair[1]))
		require.NoError(t, err)
		assert.Equal(t, a, b, "%q vs %q", pair[0], pair[1])
	}

	base, _ := Key(request("fox"))
	different := []executor.Request{
		request("fox OR dog"),
		{Query: "fox", Limit: 5, Params: ranker.DefaultParams()},
		{Query: "fox", Limit: 10, Params: ranker.Params{K1: 2, B: 0.75, TitleWeight: 2}},
	}
	for _, req := range different {
		k, err := Key(req)
		require.NoError(t, err)
		assert.NotEqual(t, base, k, "%+v", req)
	}
	assert.True(t, strings.HasPrefix(base, keyPrefix))
}

func TestSyntaxErrorBypassesCache(t *testing.T) {
	store := newMemStore()
	c := newCache(store)
	_, _, err := c.GetOrCompute(context.Background(), request("fox NEAR/0 dog"),
		func(context.Context) (*executor.SearchResult, error) {
			return nil, apperrors.Syntaxf("bad")
		})
	require.ErrorIs(t, err, apperrors.ErrQuerySyntax)
	assert.Zero(t, store.gets.Load())
}

func TestComputeErrorIsNotCached(t *testing.T) {
	store := newMemStore()
	c := newCache(store)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), request("fox"),
		func(context.Context) (*executor.SearchResult, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestRedisFailureFallsThroughAndTripsBreaker(t *testing.T) {
	store := newMemStore()
	store.fail(errors.New("connection refused"))
	c := newCache(store)
	var calls atomic.Int64

	for i := 0; i < 4; i++ {
		result, hit, err := c.GetOrCompute(context.Background(), request("fox"), counting(&calls))
		require.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, result)
	}
	assert.EqualValues(t, 4, calls.Load())
	assert.Equal(t, "open", c.Stats().BreakerState)
	// get + set on the first request open the breaker; later calls skip Redis.
	assert.EqualValues(t, 1, store.gets.Load())
}

func TestConcurrentMissesShareCompute(t *testing.T) {
	c := newCache(newMemStore())
	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return &executor.SearchResult{TotalHits: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), request("fox"), compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int64(8))
	assert.GreaterOrEqual(t, calls.Load(), int64(1))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := newCache(store)
	var calls atomic.Int64
	for _, q := range []string{"fox", "dog", "turtle"} {
		_, _, err := c.GetOrCompute(context.Background(), request(q), counting(&calls))
		require.NoError(t, err)
	}
	store.data["other:key"] = "x"

	deleted, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)
	assert.Len(t, store.data, 1)

	_, hit, err := c.GetOrCompute(context.Background(), request("fox"), counting(&calls))
	require.NoError(t, err)
	assert.False(t, hit)
}
