package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/metrics"
)

// Publisher is the part of kafka.Producer the collector needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Metrics       *metrics.Metrics
}

// Collector buffers events in a channel and publishes them in batches when
// a batch fills or the flush interval passes. Track never blocks; events
// that do not fit in the buffer are dropped and counted.
type Collector struct {
	publisher Publisher
	opts      CollectorOptions
	eventCh   chan SearchEvent
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewCollector(publisher Publisher, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Collector{
		publisher: publisher,
		opts:      opts,
		eventCh:   make(chan SearchEvent, opts.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It exits after Close drains the buffer.
func (c *Collector) Start() {
	go c.loop()
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"flush_interval", c.opts.FlushInterval,
	)
}

func (c *Collector) Track(event SearchEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events, flushes what is buffered, and waits for the
// loop to exit. Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

func (c *Collector) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.opts.BatchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(batch)
				return
			}
			batch = append(batch, kafka.Event{Key: event.Query, Value: event})
			if len(batch) >= c.opts.BatchSize {
				c.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(batch)
			batch = batch[:0]
		}
	}
}

func (c *Collector) flush(batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.count("failed", len(batch))
		c.logger.Error("failed to publish analytics batch", "count", len(batch), "error", err)
		return
	}
	c.count("published", len(batch))
}

func (c *Collector) count(status string, n int) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.AnalyticsEventsTotal.WithLabelValues(status).Add(float64(n))
	}
}
