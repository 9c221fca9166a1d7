package channel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

type stubChannel struct {
	name   string
	ok     bool
	arrive chan<- struct{}
	wait   <-chan struct{}
	calls  atomic.Int32
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(_ context.Context, _ record.Alert) bool {
	s.calls.Add(1)
	if s.arrive != nil {
		s.arrive <- struct{}{}
	}
	if s.wait != nil {
		select {
		case <-s.wait:
		case <-time.After(2 * time.Second):
			return false
		}
	}
	return s.ok
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for k, v := range labels {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == v {
						found = true
						break
					}
				}
				if !found {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestDispatchCountsSuccesses(t *testing.T) {
	good := &stubChannel{name: "email", ok: true}
	bad := &stubChannel{name: "slack", ok: false}
	mg := NewManager(nil, logging.Discard(), good, bad)

	if got := mg.Dispatch(context.Background(), testAlert()); got != 1 {
		t.Errorf("Dispatch = %d, want 1", got)
	}
	if good.calls.Load() != 1 || bad.calls.Load() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", good.calls.Load(), bad.calls.Load())
	}
}

func TestDispatchNoChannels(t *testing.T) {
	mg := NewManager(nil, logging.Discard())
	if got := mg.Dispatch(context.Background(), testAlert()); got != 0 {
		t.Errorf("Dispatch = %d, want 0", got)
	}
}

func TestDispatchSendsInParallel(t *testing.T) {
	arrive := make(chan struct{})
	proceed := make(chan struct{})
	a := &stubChannel{name: "a", ok: true, arrive: arrive, wait: proceed}
	b := &stubChannel{name: "b", ok: true, arrive: arrive, wait: proceed}
	mg := NewManager(nil, logging.Discard(), a, b)

	// Both sends must be in flight before either may finish. Serial
	// dispatch would leave the first send stuck until its timeout.
	go func() {
		<-arrive
		<-arrive
		close(proceed)
	}()

	if got := mg.Dispatch(context.Background(), testAlert()); got != 2 {
		t.Fatalf("Dispatch = %d, want 2 (sends did not overlap)", got)
	}
}

func TestDispatchRecordsMetrics(t *testing.T) {
	m := metrics.NewAlerting()
	mg := NewManager(m, logging.Discard(),
		&stubChannel{name: "email", ok: true},
		&stubChannel{name: "slack", ok: false},
	)
	mg.Dispatch(context.Background(), testAlert())

	if got := counterValue(t, m.Registry, "alerts_sent_total", map[string]string{"channel": "email", "status": "ok"}); got != 1 {
		t.Errorf("email ok count = %v, want 1", got)
	}
	if got := counterValue(t, m.Registry, "alerts_sent_total", map[string]string{"channel": "slack", "status": "error"}); got != 1 {
		t.Errorf("slack error count = %v, want 1", got)
	}
}

func TestChannels(t *testing.T) {
	mg := NewManager(nil, logging.Discard(),
		&stubChannel{name: "email"},
		&stubChannel{name: "slack"},
	)
	got := mg.Channels()
	if len(got) != 2 || got[0] != "email" || got[1] != "slack" {
		t.Errorf("Channels = %v", got)
	}
}
