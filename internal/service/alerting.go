package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/bus"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/channel"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/config"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/dedup"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/rules"
)

// AlertingStage consumes processed-logs, evaluates the rule set and
// delivers deduplicated alerts to the configured sinks and the alerts
// topic.
type AlertingStage struct {
	cfg    config.Alerting
	logger *slog.Logger
}

// NewAlertingStage builds the evaluate and deliver stage from its
// configuration.
func NewAlertingStage(cfg config.Alerting, logger *slog.Logger) *AlertingStage {
	return &AlertingStage{cfg: cfg, logger: logging.Default(logger)}
}

// Name implements Stage.
func (s *AlertingStage) Name() string { return "alerting" }

// Run gates on the broker, loads the rule set and consumes until ctx
// is cancelled. The dedup cache is best-effort: an unreachable cache
// means duplicate alerts, never dropped ones.
func (s *AlertingStage) Run(ctx context.Context) error {
	m := metrics.NewAlerting()

	msrv := NewMetricsServer(s.cfg.MetricsPort, m.Registry, s.logger)
	if err := msrv.Start(); err != nil {
		return err
	}
	defer msrv.Stop()

	consumer, err := bus.NewConsumer(bus.ConsumerConfig{
		Brokers: s.cfg.Brokers,
		Topic:   s.cfg.TopicProcessedLogs,
		Group:   s.cfg.ConsumerGroup,
		Stage:   "alerting",
		Offset:  "latest",
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer consumer.Close()

	producer, err := bus.NewProducer(bus.ProducerConfig{
		Brokers: s.cfg.Brokers,
		Topic:   s.cfg.TopicAlerts,
		Stage:   "alerting",
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer producer.Close()

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	if err := producer.Start(ctx); err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	engine := rules.NewEngine(s.logger)
	if s.cfg.RulesPath != "" {
		loaded, err := rules.LoadFile(s.cfg.RulesPath)
		if err != nil {
			return fmt.Errorf("rules file: %w", err)
		}
		if err := engine.Replace(loaded); err != nil {
			return fmt.Errorf("rules file: %w", err)
		}
		s.logger.Info("rule set loaded from file", "path", s.cfg.RulesPath, "rules", len(loaded))
	}

	cache := dedup.New(dedup.Config{
		Addr:     s.cfg.RedisAddr(),
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
		TTL:      s.cfg.DedupTTL,
		Logger:   s.logger,
	})
	cache.Start(ctx)
	defer cache.Close()

	manager := channel.NewManager(m, s.logger, s.sinks()...)
	if names := manager.Channels(); len(names) == 0 {
		s.logger.Warn("no alert channels configured, alerts only reach the alerts topic")
	} else {
		s.logger.Info("alert channels ready", "channels", names)
	}

	ev := &evaluator{
		engine:   engine,
		cache:    cache,
		manager:  manager,
		producer: producer,
		metrics:  m,
		logger:   s.logger.With("component", "alerting"),
	}

	msrv.Ready()

	// Deliveries started before shutdown finish on their own budget.
	deliverCtx := context.WithoutCancel(ctx)
	return consumer.Run(ctx, func(value []byte) {
		ev.evaluate(deliverCtx, value)
	})
}

// sinks builds the channel list from config; unconfigured sinks are
// skipped.
func (s *AlertingStage) sinks() []channel.Channel {
	var sinks []channel.Channel
	if s.cfg.EmailEnabled() {
		sinks = append(sinks, channel.NewEmail(channel.EmailConfig{
			Host:     s.cfg.SMTPHost,
			Port:     s.cfg.SMTPPort,
			User:     s.cfg.SMTPUser,
			Password: s.cfg.SMTPPassword,
			From:     s.cfg.FromEmail,
			To:       s.cfg.ToEmails,
			Logger:   s.logger,
		}))
	}
	if s.cfg.SlackEnabled() {
		sinks = append(sinks, channel.NewSlack(s.cfg.SlackWebhookURL, s.logger))
	}
	return sinks
}

// evaluator is the evaluate-dedup-deliver loop, separated from client
// wiring.
type evaluator struct {
	engine   *rules.Engine
	cache    *dedup.Cache
	manager  *channel.Manager
	producer bus.Producer
	metrics  *metrics.Alerting
	logger   *slog.Logger
}

// evaluate runs one processed record through the rule set. Every
// triggered rule becomes an alert unless the cache has seen the same
// rule and fingerprint inside the TTL. Delivery and the alerts topic
// are independent: one failing never stops the other.
func (ev *evaluator) evaluate(ctx context.Context, value []byte) {
	var rec record.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		ev.logger.Warn("undecodable record skipped", "error", err)
		return
	}
	ev.metrics.LogsEvaluated.Inc()

	for _, rule := range ev.engine.Evaluate(rec) {
		alert := record.Alert{
			RuleName:    rule.Name,
			Description: rule.Description,
			Severity:    rule.Severity,
			Timestamp:   record.UTCNow(),
			LogData:     rec,
		}

		if ev.cache.Seen(ctx, rule.Name, rec.Fingerprint) {
			ev.metrics.AlertsSuppressed.WithLabelValues(rule.Name).Inc()
			ev.logger.Debug("duplicate alert suppressed",
				"rule", rule.Name, "fingerprint", rec.Fingerprint)
			continue
		}

		ev.metrics.AlertsTriggered.WithLabelValues(rule.Name, rule.Severity).Inc()
		ev.logger.Info("alert triggered",
			"rule", rule.Name, "severity", rule.Severity, "hostname", rec.Hostname)

		ev.manager.Dispatch(ctx, alert)
		ev.publish(ctx, alert)
	}
}

func (ev *evaluator) publish(ctx context.Context, alert record.Alert) {
	data, err := json.Marshal(alert)
	if err != nil {
		ev.logger.Warn("alert not encodable", "rule", alert.RuleName, "error", err)
		return
	}
	if err := ev.producer.Publish(ctx, data); err != nil {
		ev.logger.Warn("alert publish failed", "rule", alert.RuleName, "error", err)
	}
}
