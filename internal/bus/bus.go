// Package bus moves records between pipeline stages over Kafka using
// franz-go. Values are UTF-8 JSON and carry no key; ordering across
// records is not part of the pipeline contract.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes values to one topic.
type Producer interface {
	// Publish sends one value, retrying transient failures a bounded
	// number of times. A returned error means the value was dropped.
	Publish(ctx context.Context, value []byte) error
	Close()
}

// Consumer delivers values from one topic to a handler.
type Consumer interface {
	// Run polls until ctx is cancelled, invoking handle for every
	// record value. Handle must not retain the slice. Run returns nil
	// on cancellation.
	Run(ctx context.Context, handle func(value []byte)) error
	Close()
}

// Starter is implemented by clients that must reach the broker before
// the stage is considered ready.
type Starter interface {
	// Start pings the broker, retrying on a constant interval until
	// the retry budget is spent. Exhaustion is fatal for the stage.
	Start(ctx context.Context) error
}

const (
	startInterval = 5 * time.Second
	startAttempts = 10
)

// startRetry waits out broker unavailability at stage start.
func startRetry(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(startInterval), startAttempts-1),
		ctx,
	)
}

func clientID(stage string) string {
	return fmt.Sprintf("cybersentinel-%s-%s", stage, uuid.NewString())
}

func ping(ctx context.Context, client *kgo.Client, bo backoff.BackOff) error {
	op := func() error { return client.Ping(ctx) }
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	return nil
}
