package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index", cfg.Index.BasePath)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}

	idx, loadStats, err := segment.Load(cfg.Index.BasePath, segment.LoadOptions{MaxBlockSize: cfg.Index.MaxBlockSize})
	if err != nil {
		slog.Error("failed to load index", "base", cfg.Index.BasePath, "error", err)
		os.Exit(1)
	}
	if m != nil {
		m.ObserveIndex(loadStats.Documents, loadStats.Terms, loadStats.PostingLists, loadStats.Duration)
		m.IndexDroppedLists.Add(float64(len(loadStats.Dropped)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if idx.Forward.Size() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", loadStats.Documents, loadStats.Terms),
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Search.CacheResults {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cache.Options{
				TTL:     cfg.Redis.CacheTTL.Std(),
				IsMiss:  pkgredis.IsNilError,
				Breaker: resilience.CircuitBreakerConfig{},
				Metrics: m,
			})
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var wg sync.WaitGroup
	aggregator := analytics.NewAggregator(m)
	var sink analytics.Sink = aggregator
	if cfg.Search.PublishEvents {
		topic := cfg.Kafka.Topics.SearchEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorOptions{Metrics: m})
		collector.Start()
		defer collector.Close()
		sink = collector

		consumer := kafka.NewConsumer(cfg.Kafka, topic, aggregator.Handler())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("search analytics publishing", "topic", topic, "group", cfg.Kafka.ConsumerGroup)
	}

	exec := executor.New(engine.New(idx), executor.Options{
		TitleSnippet: cfg.Search.TitleSnippet,
		PlotSnippet:  cfg.Search.PlotSnippet,
		Metrics:      m,
	})
	h := handler.New(exec, idx, queryCache, sink, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Defaults: ranker.Params{
			K1:          cfg.Search.BM25.K1,
			B:           cfg.Search.BM25.B,
			TitleWeight: cfg.Search.BM25.TitleWeight,
		},
		DroppedLists: len(loadStats.Dropped),
		Metrics:      m,
	})

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit)
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(router.Deps{
			Search:         h,
			Analytics:      analytics.NewHandler(aggregator),
			Health:         checker,
			Metrics:        m,
			RequestTimeout: cfg.Server.RequestTimeout.Std(),
			CORSOrigins:    cfg.Server.CORSOrigins,
			Limiter:        limiter,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	wg.Wait()
	slog.Info("search service stopped")
}
