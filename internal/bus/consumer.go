package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
)

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	Group   string
	Stage   string // client id component, e.g. "processor"
	// Offset picks where a new group starts: "earliest" or "latest".
	Offset string
	Logger *slog.Logger
}

// KafkaConsumer polls one topic as part of a consumer group with
// periodic offset autocommit.
type KafkaConsumer struct {
	cfg    ConsumerConfig
	client *kgo.Client
	logger *slog.Logger
}

// NewConsumer creates a consumer for cfg.Topic in cfg.Group. The
// broker is not contacted until Start or Run.
func NewConsumer(cfg ConsumerConfig) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no brokers configured")
	}
	if cfg.Topic == "" || cfg.Group == "" {
		return nil, errors.New("topic and group are required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeResetOffset(resetOffset(cfg.Offset)),
		kgo.AutoCommitInterval(5*time.Second),
		kgo.ClientID(clientID(cfg.Stage)),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	return &KafkaConsumer{
		cfg:    cfg,
		client: client,
		logger: logging.Default(cfg.Logger).With("component", "consumer", "topic", cfg.Topic, "group", cfg.Group),
	}, nil
}

// resetOffset maps the config value to a group start position for
// partitions without a committed offset.
func resetOffset(s string) kgo.Offset {
	if s == "latest" {
		return kgo.NewOffset().AtEnd()
	}
	return kgo.NewOffset().AtStart()
}

// Start verifies the broker is reachable, retrying on a constant
// interval until the budget is spent.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	if err := ping(ctx, c.client, startRetry(ctx)); err != nil {
		return err
	}
	c.logger.Info("kafka consumer started", "brokers", c.cfg.Brokers)
	return nil
}

// Run polls until ctx is cancelled, handing every record value to
// handle. Malformed values are the handler's problem; Run never stops
// over a record. Uncommitted offsets are committed once on the way
// out.
func (c *KafkaConsumer) Run(ctx context.Context, handle func(value []byte)) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			c.logger.Info("kafka consumer stopping")
			_ = c.client.CommitUncommittedOffsets(context.Background())
			return nil
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				c.logger.Warn("kafka fetch error",
					"topic", e.Topic,
					"partition", e.Partition,
					"error", e.Err,
				)
			}
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			handle(rec.Value)
		})
	}
}

// Close releases the client.
func (c *KafkaConsumer) Close() {
	c.client.Close()
	c.logger.Info("kafka consumer closed")
}
