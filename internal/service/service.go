// Package service wires configuration, bus clients, the store, the
// rule engine and the delivery sinks into runnable pipeline stages.
//
// A stage is one long-running unit: the receiver, the processor or
// the alerting loop. Each stage owns its clients and its metrics
// endpoint; Run ties a set of stages to one context so the process
// stops as a whole when any stage fails.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
)

// drainTimeout bounds how long a stopping stage waits for in-flight
// records before giving up on them.
const drainTimeout = 30 * time.Second

// Stage is one runnable pipeline unit.
type Stage interface {
	Name() string
	// Run blocks until ctx is cancelled or the stage fails. A nil
	// return means a clean stop.
	Run(ctx context.Context) error
}

// Run starts every stage and blocks until all have stopped. The first
// stage error cancels the rest; its error is returned.
func Run(ctx context.Context, logger *slog.Logger, stages ...Stage) error {
	logger = logging.Default(logger)

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range stages {
		st := st
		g.Go(func() error {
			logger.Info("stage starting", "stage", st.Name())
			if err := st.Run(gctx); err != nil {
				logger.Error("stage failed", "stage", st.Name(), "error", err)
				return fmt.Errorf("%s: %w", st.Name(), err)
			}
			logger.Info("stage stopped", "stage", st.Name())
			return nil
		})
	}
	return g.Wait()
}

// MetricsServer exposes one stage registry over HTTP together with
// liveness and readiness probes. /healthz answers as soon as the
// server is up; /readyz answers 503 until the stage passed its
// dependency gate and called Ready.
type MetricsServer struct {
	srv    *http.Server
	ln     net.Listener
	ready  atomic.Bool
	logger *slog.Logger
}

// NewMetricsServer builds a server for the registry on the given port.
// Port 0 binds an ephemeral port.
func NewMetricsServer(port int, reg *prometheus.Registry, logger *slog.Logger) *MetricsServer {
	m := &MetricsServer{
		logger: logging.Default(logger).With("component", "metrics"),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !m.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	m.srv = &http.Server{
		Addr:    net.JoinHostPort("", strconv.Itoa(port)),
		Handler: mux,
	}
	return m
}

// Start binds the port and serves in the background. A port that does
// not bind is fatal for the stage.
func (m *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", m.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	m.ln = ln

	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	m.logger.Info("metrics server listening", "addr", ln.Addr().String())
	return nil
}

// Ready flips the readiness probe to 200.
func (m *MetricsServer) Ready() {
	m.ready.Store(true)
}

// Addr returns the bound address. Only valid after Start.
func (m *MetricsServer) Addr() net.Addr {
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

// Stop shuts the server down, letting in-flight scrapes finish.
func (m *MetricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
}

// waitTimeout waits for wg at most d, reporting whether the wait
// completed in time.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
