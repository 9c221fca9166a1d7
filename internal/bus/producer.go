package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
)

const (
	publishBase     = 100 * time.Millisecond
	publishAttempts = 3
)

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers []string
	Topic   string
	Stage   string // client id component, e.g. "receiver"
	Logger  *slog.Logger
}

// KafkaProducer publishes to one topic with idempotent acks from the
// full ISR and LZ4-compressed batches.
type KafkaProducer struct {
	cfg    ProducerConfig
	client *kgo.Client
	logger *slog.Logger
}

// NewProducer creates a producer bound to cfg.Topic. The broker is not
// contacted until Start.
func NewProducer(cfg ProducerConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("no topic configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.Lz4Compression()),
		kgo.ClientID(clientID(cfg.Stage)),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	return &KafkaProducer{
		cfg:    cfg,
		client: client,
		logger: logging.Default(cfg.Logger).With("component", "producer", "topic", cfg.Topic),
	}, nil
}

// Start verifies the broker is reachable, retrying on a constant
// interval until the budget is spent.
func (p *KafkaProducer) Start(ctx context.Context) error {
	if err := ping(ctx, p.client, startRetry(ctx)); err != nil {
		return err
	}
	p.logger.Info("kafka producer started", "brokers", p.cfg.Brokers)
	return nil
}

// Publish sends one value with no key. Transient failures are retried
// with exponential backoff from 100ms; after the attempts are spent
// the error is returned and the value is the caller's to drop.
func (p *KafkaProducer) Publish(ctx context.Context, value []byte) error {
	op := func() error {
		rec := &kgo.Record{Value: value}
		return p.client.ProduceSync(ctx, rec).FirstErr()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = publishBase
	bo.Multiplier = 2

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, publishAttempts-1), ctx))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.Topic, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaProducer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
	p.logger.Info("kafka producer closed")
}
