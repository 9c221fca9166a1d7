// Package channel delivers alerts to external sinks. Sinks report
// plain success or failure; retries, if any, live inside the sink.
// The set of sinks is fixed when the manager is built.
package channel

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

// Channel is one alert sink.
type Channel interface {
	Name() string
	// Send delivers one alert, reporting success. Implementations
	// bound their own time and must not panic.
	Send(ctx context.Context, alert record.Alert) bool
}

// Manager fans alerts out to every configured sink.
type Manager struct {
	channels []Channel
	metrics  *metrics.Alerting
	logger   *slog.Logger
}

// NewManager builds a manager over the given sinks.
func NewManager(m *metrics.Alerting, logger *slog.Logger, channels ...Channel) *Manager {
	if m == nil {
		m = metrics.NewAlerting()
	}
	return &Manager{
		channels: channels,
		metrics:  m,
		logger:   logging.Default(logger).With("component", "channels"),
	}
}

// Channels returns the names of the configured sinks.
func (mg *Manager) Channels() []string {
	names := make([]string, len(mg.channels))
	for i, ch := range mg.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch sends the alert through every sink in parallel and returns
// how many deliveries succeeded. One sink failing never affects its
// siblings; every attempt is timed and counted per channel.
func (mg *Manager) Dispatch(ctx context.Context, alert record.Alert) int {
	if len(mg.channels) == 0 {
		mg.logger.Warn("no alert channels configured", "rule", alert.RuleName)
		return 0
	}

	var delivered atomic.Int64
	var g errgroup.Group
	for _, ch := range mg.channels {
		ch := ch
		g.Go(func() error {
			start := time.Now()
			ok := ch.Send(ctx, alert)
			mg.metrics.Sent(ch.Name(), ok, time.Since(start).Seconds())
			if ok {
				delivered.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	n := int(delivered.Load())
	mg.logger.Info("alert dispatched",
		"rule", alert.RuleName,
		"channels", len(mg.channels),
		"delivered", n,
	)
	return n
}

// orNA substitutes the sinks' placeholder for missing record fields.
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "None"
	}
	return strings.Join(values, ", ")
}
