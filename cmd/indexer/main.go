package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	source := flag.String("source", "", "override ingestion source (csv|postgres)")
	csvPath := flag.String("csv", "", "override CSV path")
	output := flag.String("out", "", "override index base path")
	quiet := flag.Bool("quiet", false, "disable the progress bar")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Ingestion.Source = *source
	}
	if *csvPath != "" {
		cfg.Ingestion.CSVPath = *csvPath
	}
	if *output != "" {
		cfg.Index.BasePath = *output
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"source", cfg.Ingestion.Source,
		"base", cfg.Index.BasePath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		slog.Error("failed to open source", "error", err)
		os.Exit(1)
	}
	defer closeSrc()

	opts := indexer.BuilderOptions{
		Limits: validator.Limits{
			MaxTitleLength: cfg.Ingestion.MaxTitleLength,
			MaxPlotLength:  cfg.Ingestion.MaxPlotLength,
		},
		Metrics: m,
	}
	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("docs"),
			progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
		opts.Progress = func(indexed, rejected int) {
			_ = bar.Set(indexed + rejected)
		}
	}

	_, stats, err := indexer.Build(ctx, src, cfg.Index.BasePath, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("indexed %d documents (%d terms, %d postings lists) in %v\n",
		stats.Documents, stats.Terms, stats.PostingLists, stats.Duration.Round(time.Millisecond))
	for reason, n := range stats.Rejected {
		fmt.Printf("  rejected %d: %s\n", n, reason)
	}
}

func openSource(ctx context.Context, cfg *config.Config) (ingestion.Source, func(), error) {
	switch cfg.Ingestion.Source {
	case "csv":
		src, err := ingestion.NewCSVSource(cfg.Ingestion.CSVPath, ingestion.CSVOptions{
			TitleColumn: cfg.Ingestion.TitleColumn,
			PlotColumn:  cfg.Ingestion.PlotColumn,
			MinColumns:  cfg.Ingestion.MinColumns,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return ingestion.NewPostgresSource(client.DB, cfg.Ingestion.Table), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ingestion source %q", cfg.Ingestion.Source)
	}
}
