package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/metrics"
)

// Tracker accepts analytics events without blocking the caller.
type Tracker interface {
	Track(event any)
}

// Publisher writes a batch of events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorOptions tunes buffering. Zero values pick defaults.
type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events in a channel and ships them to the publisher in
// batches, when a batch fills or the flush interval passes. Events that do
// not fit in the buffer are dropped and counted.
type Collector struct {
	publisher Publisher
	opts      CollectorOptions
	eventCh   chan any
	metrics   *metrics.Metrics
	logger    *slog.Logger
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewCollector creates a collector. m may be nil.
func NewCollector(publisher Publisher, opts CollectorOptions, m *metrics.Metrics) *Collector {
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
		eventCh:   make(chan any, opts.BufferSize),
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It stops when ctx is cancelled or Close
// is called, flushing whatever is buffered. Either way the collector stops
// accepting events first.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.opts.FlushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.opts.BatchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, toKafkaEvent(event))
				if len(batch) >= c.opts.BatchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				c.stopAccepting()
				c.flush(context.Background(), c.drain(batch))
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"flush_interval", c.opts.FlushInterval,
	)
}

// Track enqueues event, dropping it when the buffer is full or the collector
// is closed.
func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Start must
// have been called.
func (c *Collector) Close() {
	c.stopAccepting()
	<-c.done
}

func (c *Collector) stopAccepting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafkaEvent(event))
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	out := make([]kafka.Event, len(batch))
	copy(out, batch)
	if err := c.publisher.PublishBatch(ctx, out); err != nil {
		c.logger.Error("failed to publish analytics batch", "events", len(out), "error", err)
		return
	}
	c.logger.Debug("analytics batch published", "events", len(out))
}

// toKafkaEvent keys events by type so each kind stays ordered on one
// partition.
func toKafkaEvent(event any) kafka.Event {
	key := "analytics"
	switch event.(type) {
	case SelectionEvent, *SelectionEvent:
		key = string(EventSelection)
	case RefreshEvent, *RefreshEvent:
		key = string(EventRefresh)
	}
	return kafka.Event{Key: key, Value: event}
}
