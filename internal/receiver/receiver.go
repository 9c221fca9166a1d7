// Package receiver implements the ingest stage: UDP, TCP and TLS
// syslog listeners that parse incoming messages into records and
// publish them to the raw-logs topic.
//
// Listeners hand parsed records to a buffered queue; a pool of
// publisher goroutines drains the queue to the bus so a slow broker
// never blocks a listener read. Shutdown stops the listeners first,
// then drains the queue before the producer is closed.
package receiver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/bus"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/cert"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/syslog"
)

// queueSize bounds the records parked between listeners and the
// publisher pool.
const queueSize = 1024

// Config holds the ingest stage configuration.
type Config struct {
	// BindAddr is the interface all listeners bind to.
	BindAddr string

	UDPPort int
	TCPPort int
	TLSPort int

	// TLSEnabled starts the TLS listener when Certs is also set.
	TLSEnabled bool

	// Certs supplies the TLS key pair. Nil with TLSEnabled set means
	// the certificate did not load; the listener is skipped with a
	// warning and the plain listeners run anyway.
	Certs *cert.Source

	// MaxMessageSize caps one UDP datagram. Longer datagrams are
	// truncated at this size.
	MaxMessageSize int

	// Workers is the size of the publisher pool.
	Workers int

	Logger  *slog.Logger
	Metrics *metrics.Receiver
}

// Receiver accepts syslog messages via UDP, TCP and TLS.
type Receiver struct {
	cfg      Config
	producer bus.Producer
	metrics  *metrics.Receiver
	logger   *slog.Logger

	queue chan record.Record

	mu     sync.Mutex
	udp    *net.UDPConn
	tcp    *net.TCPListener
	tlsCtl *net.TCPListener
	tlsLn  net.Listener
}

// New creates a receiver publishing to producer. The sockets are not
// bound until Run.
func New(cfg Config, producer bus.Producer) *Receiver {
	if cfg.MaxMessageSize < 1 {
		cfg.MaxMessageSize = 8192
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewReceiver()
	}
	return &Receiver{
		cfg:      cfg,
		producer: producer,
		metrics:  cfg.Metrics,
		logger:   logging.Default(cfg.Logger).With("component", "receiver"),
		queue:    make(chan record.Record, queueSize),
	}
}

// Run binds the listeners and blocks until ctx is cancelled or a
// listener fails. On return the queue has been drained and every
// accepted record was handed to the producer.
func (r *Receiver) Run(ctx context.Context) error {
	if err := r.bind(); err != nil {
		r.closeListeners()
		return err
	}

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Publishers outlive ctx so records already queued still reach
	// the bus during shutdown.
	pubCtx := context.WithoutCancel(ctx)
	var publishers sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		publishers.Add(1)
		go func() {
			defer publishers.Done()
			r.publishLoop(pubCtx)
		}()
	}

	var listeners sync.WaitGroup
	errCh := make(chan error, 3)

	listeners.Add(1)
	go func() {
		defer listeners.Done()
		if err := r.runUDP(lctx); err != nil {
			errCh <- err
		}
	}()
	listeners.Add(1)
	go func() {
		defer listeners.Done()
		if err := r.runStream(lctx, "tcp", r.tcp, r.tcp); err != nil {
			errCh <- err
		}
	}()
	if r.tlsLn != nil {
		listeners.Add(1)
		go func() {
			defer listeners.Done()
			if err := r.runStream(lctx, "tls", r.tlsLn, r.tlsCtl); err != nil {
				errCh <- err
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		r.logger.Info("receiver stopping")
	case err = <-errCh:
		r.logger.Error("listener failed", "error", err)
	}

	cancel()
	r.closeListeners()
	listeners.Wait()
	close(r.queue)
	publishers.Wait()
	return err
}

// bind opens the sockets. UDP and TCP failures are fatal; a TLS
// listener that cannot start is skipped so plain ingest continues.
func (r *Receiver) bind() error {
	udpAddr, err := net.ResolveUDPAddr("udp", r.addr(r.cfg.UDPPort))
	if err != nil {
		return fmt.Errorf("resolve udp addr: %w", err)
	}
	udp, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("udp listen: %w", err)
	}

	tcp, err := net.Listen("tcp", r.addr(r.cfg.TCPPort))
	if err != nil {
		_ = udp.Close()
		return fmt.Errorf("tcp listen: %w", err)
	}

	r.mu.Lock()
	r.udp = udp
	r.tcp = tcp.(*net.TCPListener)
	r.mu.Unlock()

	if !r.cfg.TLSEnabled {
		return nil
	}
	if r.cfg.Certs == nil {
		r.logger.Warn("tls listener disabled, no certificate loaded")
		return nil
	}
	ctl, err := net.Listen("tcp", r.addr(r.cfg.TLSPort))
	if err != nil {
		r.logger.Warn("tls listen failed, listener disabled", "error", err)
		return nil
	}

	r.mu.Lock()
	r.tlsCtl = ctl.(*net.TCPListener)
	r.tlsLn = tls.NewListener(ctl, r.cfg.Certs.TLSConfig())
	r.mu.Unlock()
	return nil
}

func (r *Receiver) addr(port int) string {
	return net.JoinHostPort(r.cfg.BindAddr, strconv.Itoa(port))
}

func (r *Receiver) closeListeners() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.udp != nil {
		_ = r.udp.Close()
		r.udp = nil
	}
	if r.tcp != nil {
		_ = r.tcp.Close()
		r.tcp = nil
	}
	if r.tlsLn != nil {
		_ = r.tlsLn.Close()
		r.tlsLn = nil
		r.tlsCtl = nil
	}
}

// handle parses one payload and queues the record. Parsing is total,
// so every accepted payload becomes a record.
func (r *Receiver) handle(ctx context.Context, data []byte, sourceIP, protocol string) {
	raw := strings.ToValidUTF8(string(data), "�")
	msg := syslog.Parse(raw)

	rec := record.Record{
		Raw:            raw,
		ReceivedAt:     record.UTCNow(),
		SourceIP:       sourceIP,
		Protocol:       protocol,
		Priority:       int(msg.Priority),
		Facility:       msg.Priority.Facility(),
		Severity:       msg.Priority.Severity(),
		FacilityName:   syslog.FacilityName(msg.Priority.Facility()),
		SeverityName:   syslog.SeverityName(msg.Priority.Severity()),
		Format:         msg.Format,
		Version:        msg.Version,
		Timestamp:      msg.Timestamp,
		Hostname:       msg.Hostname,
		AppName:        msg.AppName,
		ProcID:         msg.ProcID,
		MsgID:          msg.MsgID,
		StructuredData: msg.StructuredData,
		Tag:            msg.Tag,
		PID:            msg.PID,
		Message:        msg.Message,
	}

	r.metrics.Received(protocol, len(data), true)

	select {
	case r.queue <- rec:
	case <-ctx.Done():
	}
}

// publishLoop drains the queue until it is closed. A record the bus
// will not take after retries is dropped and counted; the pipeline
// keeps flowing.
func (r *Receiver) publishLoop(ctx context.Context) {
	for rec := range r.queue {
		data, err := json.Marshal(rec)
		if err != nil {
			r.metrics.MessagesPublished.WithLabelValues(metrics.StatusError).Inc()
			r.metrics.PublishErrors.WithLabelValues("encode").Inc()
			continue
		}
		if err := r.producer.Publish(ctx, data); err != nil {
			r.logger.Warn("publish failed, record dropped", "error", err)
			r.metrics.MessagesPublished.WithLabelValues(metrics.StatusError).Inc()
			r.metrics.PublishErrors.WithLabelValues("publish").Inc()
			continue
		}
		r.metrics.MessagesPublished.WithLabelValues(metrics.StatusOK).Inc()
	}
}

// UDPAddr returns the UDP listener address. Only valid after Run has
// bound the sockets.
func (r *Receiver) UDPAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.udp == nil {
		return nil
	}
	return r.udp.LocalAddr()
}

// TCPAddr returns the TCP listener address. Only valid after Run has
// bound the sockets.
func (r *Receiver) TCPAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tcp == nil {
		return nil
	}
	return r.tcp.Addr()
}

// TLSAddr returns the TLS listener address, or nil when the listener
// is disabled.
func (r *Receiver) TLSAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tlsCtl == nil {
		return nil
	}
	return r.tlsCtl.Addr()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// deadline is the read and accept deadline that lets blocking socket
// calls observe context cancellation.
func deadline() time.Time {
	return time.Now().Add(time.Second)
}
