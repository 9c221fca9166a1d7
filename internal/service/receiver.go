package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/bus"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/cert"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/config"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/receiver"
)

// ReceiverStage runs the syslog listeners and publishes raw records
// to the raw-logs topic.
type ReceiverStage struct {
	cfg    config.Receiver
	logger *slog.Logger
}

// NewReceiverStage builds the ingest stage from its configuration.
func NewReceiverStage(cfg config.Receiver, logger *slog.Logger) *ReceiverStage {
	return &ReceiverStage{cfg: cfg, logger: logging.Default(logger)}
}

// Name implements Stage.
func (s *ReceiverStage) Name() string { return "receiver" }

// Run wires the producer and listeners and blocks until ctx is
// cancelled. The broker gate must pass before any socket opens, so a
// dead bus never swallows accepted messages.
func (s *ReceiverStage) Run(ctx context.Context) error {
	m := metrics.NewReceiver()

	msrv := NewMetricsServer(s.cfg.MetricsPort, m.Registry, s.logger)
	if err := msrv.Start(); err != nil {
		return err
	}
	defer msrv.Stop()

	producer, err := bus.NewProducer(bus.ProducerConfig{
		Brokers: s.cfg.Brokers,
		Topic:   s.cfg.TopicRawLogs,
		Stage:   "receiver",
		Logger:  s.logger,
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer producer.Close()

	if err := producer.Start(ctx); err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	certs := tlsSource(s.cfg, s.logger)
	if certs != nil {
		defer certs.Close()
	}

	recv := receiver.New(receiver.Config{
		BindAddr:       s.cfg.BindAddr,
		UDPPort:        s.cfg.UDPPort,
		TCPPort:        s.cfg.TCPPort,
		TLSPort:        s.cfg.TLSPort,
		TLSEnabled:     s.cfg.TLSEnabled,
		Certs:          certs,
		MaxMessageSize: s.cfg.MaxMessageSize,
		Workers:        s.cfg.Workers,
		Logger:         s.logger,
		Metrics:        m,
	}, producer)

	msrv.Ready()
	return recv.Run(ctx)
}

// tlsSource loads the receiver key pair. A pair that does not load
// disables the TLS listener and nothing else.
func tlsSource(cfg config.Receiver, logger *slog.Logger) *cert.Source {
	if !cfg.TLSEnabled {
		return nil
	}
	src, err := cert.NewSource(cfg.TLSCertPath, cfg.TLSKeyPath, logger)
	if err != nil {
		logging.Default(logger).Warn("tls certificate unavailable, tls listener disabled",
			"cert", cfg.TLSCertPath, "error", err)
		return nil
	}
	return src
}
