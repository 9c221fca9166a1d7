package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/bus"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/config"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/enrich"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/search"
)

// ProcessorStage consumes raw-logs, enriches each record, feeds the
// store batcher and republishes to processed-logs.
type ProcessorStage struct {
	cfg    config.Processor
	logger *slog.Logger
}

// NewProcessorStage builds the enrich stage from its configuration.
func NewProcessorStage(cfg config.Processor, logger *slog.Logger) *ProcessorStage {
	return &ProcessorStage{cfg: cfg, logger: logging.Default(logger)}
}

// Name implements Stage.
func (s *ProcessorStage) Name() string { return "processor" }

// Run gates on the broker and the store, then consumes until ctx is
// cancelled. Records already polled are drained before the clients
// close.
func (s *ProcessorStage) Run(ctx context.Context) error {
	m := metrics.NewProcessor()

	msrv := NewMetricsServer(s.cfg.MetricsPort, m.Registry, s.logger)
	if err := msrv.Start(); err != nil {
		return err
	}
	defer msrv.Stop()

	consumer, err := bus.NewConsumer(bus.ConsumerConfig{
		Brokers: s.cfg.Brokers,
		Topic:   s.cfg.TopicRawLogs,
		Group:   s.cfg.ConsumerGroup,
		Stage:   "processor",
		Offset:  "earliest",
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer consumer.Close()

	producer, err := bus.NewProducer(bus.ProducerConfig{
		Brokers: s.cfg.Brokers,
		Topic:   s.cfg.TopicProcessedLogs,
		Stage:   "processor",
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer producer.Close()

	store, err := search.NewStore(search.Config{
		Addresses:   s.cfg.Search.Addresses,
		User:        s.cfg.Search.User,
		Password:    s.cfg.Search.Password,
		IndexPrefix: s.cfg.Search.IndexPrefix,
		Rotation:    s.cfg.Search.IndexRotation,
		MaxRetries:  s.cfg.Search.MaxRetries,
		Logger:      s.logger,
		Metrics:     m,
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	if err := producer.Start(ctx); err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	batcher := search.NewBatcher(store, s.cfg.Search.BulkSize, s.cfg.Search.BulkTimeout, s.logger)

	retention := search.NewRetention(store, s.cfg.Search.RetentionDays, s.logger)
	if err := retention.Schedule(ctx); err != nil {
		s.logger.Warn("retention schedule failed, sweeps disabled", "error", err)
	}
	defer func() { _ = retention.Stop() }()

	p := &pipeline{
		workers:  s.cfg.Workers,
		enricher: enrich.New(),
		batcher:  batcher,
		producer: producer,
		metrics:  m,
		logger:   s.logger.With("component", "processor"),
	}

	msrv.Ready()
	return p.run(ctx, consumer)
}

// pipeline is the consume-enrich-index-publish loop, separated from
// client wiring.
type pipeline struct {
	workers  int
	enricher *enrich.Enricher
	batcher  *search.Batcher
	producer bus.Producer
	metrics  *metrics.Processor
	logger   *slog.Logger
}

// run consumes until ctx is cancelled. Polled values are cloned onto
// a work queue; the queue and the batcher drain after the consumer
// stops so accepted records are not lost to shutdown.
func (p *pipeline) run(ctx context.Context, consumer bus.Consumer) error {
	in := make(chan []byte, p.workers*4)

	wctx := context.WithoutCancel(ctx)

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for value := range in {
				p.process(wctx, value)
			}
		}()
	}

	bctx, stopBatcher := context.WithCancel(wctx)
	var flusher sync.WaitGroup
	flusher.Add(1)
	go func() {
		defer flusher.Done()
		p.batcher.Run(bctx)
	}()

	err := consumer.Run(ctx, func(value []byte) {
		select {
		case in <- bytes.Clone(value):
		case <-ctx.Done():
		}
	})

	close(in)
	if !waitTimeout(&workers, drainTimeout) {
		p.logger.Warn("drain timed out, queued records dropped")
	}
	stopBatcher()
	flusher.Wait()
	return err
}

// process handles one raw record end to end. Failures skip the record
// and are counted; nothing a record carries can stop the loop.
func (p *pipeline) process(ctx context.Context, value []byte) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("processing panic, record skipped", "panic", r)
			p.metrics.MessagesProcessed.WithLabelValues(metrics.StatusError).Inc()
		}
	}()

	start := time.Now()

	var rec record.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		p.metrics.MessagesConsumed.WithLabelValues(metrics.StatusError).Inc()
		p.logger.Warn("undecodable record skipped", "error", err)
		return
	}
	p.metrics.MessagesConsumed.WithLabelValues(metrics.StatusOK).Inc()

	enrichStart := time.Now()
	p.enricher.Enrich(&rec)
	p.metrics.EnrichmentDuration.WithLabelValues("full").Observe(time.Since(enrichStart).Seconds())

	p.batcher.Add(ctx, rec)

	data, err := json.Marshal(rec)
	if err != nil {
		p.metrics.MessagesPublished.WithLabelValues(metrics.StatusError).Inc()
		p.metrics.MessagesProcessed.WithLabelValues(metrics.StatusError).Inc()
		return
	}
	if err := p.producer.Publish(ctx, data); err != nil {
		p.logger.Warn("publish failed, record dropped", "error", err)
		p.metrics.MessagesPublished.WithLabelValues(metrics.StatusError).Inc()
		p.metrics.MessagesProcessed.WithLabelValues(metrics.StatusError).Inc()
		return
	}
	p.metrics.MessagesPublished.WithLabelValues(metrics.StatusOK).Inc()
	p.metrics.MessagesProcessed.WithLabelValues(metrics.StatusOK).Inc()
	p.metrics.ProcessingDuration.WithLabelValues("record").Observe(time.Since(start).Seconds())
}
