package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

// Batcher buffers records and writes them to the store in bulk, at
// size docs or age interval, whichever fills first. A full batch
// flushes on the adding worker's goroutine, so flush latency is the
// pipeline's backpressure.
type Batcher struct {
	store    *Store
	size     int
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Processor

	mu      sync.Mutex
	pending []record.Record
}

// NewBatcher creates a batcher over store. Run must be started for
// age-based flushing.
func NewBatcher(store *Store, size int, interval time.Duration, logger *slog.Logger) *Batcher {
	return &Batcher{
		store:    store,
		size:     size,
		interval: interval,
		logger:   logging.Default(logger).With("component", "batcher"),
		metrics:  store.metrics,
	}
}

// Add queues one record, flushing synchronously once the batch is
// full.
func (b *Batcher) Add(ctx context.Context, rec record.Record) {
	b.mu.Lock()
	b.pending = append(b.pending, rec)
	var batch []record.Record
	if len(b.pending) >= b.size {
		batch = b.pending
		b.pending = nil
	}
	b.mu.Unlock()

	if batch != nil {
		b.flush(ctx, batch)
	}
}

// Flush writes out whatever is pending, regardless of age or size.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) > 0 {
		b.flush(ctx, batch)
	}
}

// Run flushes on the age interval until ctx is cancelled, then
// flushes the remainder so no accepted record is lost to shutdown.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			b.Flush(ctx)
		}
	}
}

func (b *Batcher) flush(ctx context.Context, batch []record.Record) {
	b.metrics.BatchSize.Observe(float64(len(batch)))
	start := time.Now()
	indexed, err := b.store.BulkIndex(ctx, batch)
	b.metrics.ProcessingDuration.WithLabelValues("bulk_flush").Observe(time.Since(start).Seconds())
	if err != nil {
		b.logger.Error("bulk flush failed", "docs", len(batch), "error", err)
		return
	}
	b.logger.Debug("batch flushed", "docs", len(batch), "indexed", indexed, "elapsed", time.Since(start))
}
