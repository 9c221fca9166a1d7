// Package metrics declares the Prometheus instruments for each
// pipeline stage. Metric names are stable contracts; dashboards and
// alerts depend on them. Each stage owns its own registry so that the
// combined dev-mode process can expose the three stages on their own
// ports without collisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values shared by every counter carrying one.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Receiver holds the ingest stage instruments.
type Receiver struct {
	Registry *prometheus.Registry

	MessagesReceived  *prometheus.CounterVec // protocol, status
	MessageSize       prometheus.Histogram
	ActiveConnections *prometheus.GaugeVec   // protocol
	MessagesPublished *prometheus.CounterVec // status
	PublishErrors     *prometheus.CounterVec // error_type
	FramesDropped     *prometheus.CounterVec // reason
}

// NewReceiver creates and registers the ingest stage instruments.
func NewReceiver() *Receiver {
	reg := newRegistry()
	factory := promauto.With(reg)
	return &Receiver{
		Registry: reg,
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_received_total",
				Help: "Syslog messages received, by listener protocol and outcome",
			},
			[]string{"protocol", "status"},
		),
		MessageSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "message_size_bytes",
				Help:    "Size of received syslog messages in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 2, 8),
			},
		),
		ActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "active_connections",
				Help: "Open stream connections, by listener protocol",
			},
			[]string{"protocol"},
		),
		MessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_published_total",
				Help: "Raw records handed to the bus producer, by outcome",
			},
			[]string{"status"},
		),
		PublishErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "publish_errors_total",
				Help: "Bus publish failures, by error class",
			},
			[]string{"error_type"},
		),
		FramesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frames_dropped_total",
				Help: "Frames discarded before parsing, by reason",
			},
			[]string{"reason"},
		),
	}
}

// Received records one accepted or failed payload on a listener.
func (m *Receiver) Received(protocol string, size int, ok bool) {
	status := StatusOK
	if !ok {
		status = StatusError
	}
	m.MessagesReceived.WithLabelValues(protocol, status).Inc()
	if ok {
		m.MessageSize.Observe(float64(size))
	}
}

// Processor holds the enrich stage instruments.
type Processor struct {
	Registry *prometheus.Registry

	MessagesConsumed   *prometheus.CounterVec   // status
	MessagesProcessed  *prometheus.CounterVec   // status
	MessagesIndexed    *prometheus.CounterVec   // status
	EnrichmentDuration *prometheus.HistogramVec // enrichment_type
	BatchSize          prometheus.Histogram
	StoreErrors        *prometheus.CounterVec   // error_type
	ProcessingDuration *prometheus.HistogramVec // operation
	MessagesPublished  *prometheus.CounterVec   // status
}

// NewProcessor creates and registers the enrich stage instruments.
func NewProcessor() *Processor {
	reg := newRegistry()
	factory := promauto.With(reg)
	return &Processor{
		Registry: reg,
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_consumed_total",
				Help: "Records pulled from the raw topic, by outcome",
			},
			[]string{"status"},
		),
		MessagesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_processed_total",
				Help: "Records run through enrichment, by outcome",
			},
			[]string{"status"},
		),
		MessagesIndexed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_indexed_total",
				Help: "Documents accepted or rejected by the store, by outcome",
			},
			[]string{"status"},
		),
		EnrichmentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrichment_duration_seconds",
				Help:    "Time spent enriching one record",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"enrichment_type"},
		),
		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batch_size",
				Help:    "Documents per bulk request sent to the store",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
			},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_errors_total",
				Help: "Store request failures, by error class",
			},
			[]string{"error_type"},
		),
		ProcessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "processing_duration_seconds",
				Help:    "Time spent per processing operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		MessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_published_total",
				Help: "Enriched records handed to the bus producer, by outcome",
			},
			[]string{"status"},
		),
	}
}

// Alerting holds the evaluate and deliver stage instruments.
type Alerting struct {
	Registry *prometheus.Registry

	LogsEvaluated    prometheus.Counter
	AlertsTriggered  *prometheus.CounterVec   // rule_name, severity
	AlertsSuppressed *prometheus.CounterVec   // rule_name
	AlertsSent       *prometheus.CounterVec   // channel, status
	DeliveryTime     *prometheus.HistogramVec // channel
}

// NewAlerting creates and registers the alerting stage instruments.
func NewAlerting() *Alerting {
	reg := newRegistry()
	factory := promauto.With(reg)
	return &Alerting{
		Registry: reg,
		LogsEvaluated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "logs_evaluated_total",
				Help: "Enriched records evaluated against the rule set",
			},
		),
		AlertsTriggered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_triggered_total",
				Help: "Alerts raised after dedup, by rule and severity",
			},
			[]string{"rule_name", "severity"},
		),
		AlertsSuppressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_suppressed_total",
				Help: "Alerts dropped by the dedup cache, by rule",
			},
			[]string{"rule_name"},
		),
		AlertsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_sent_total",
				Help: "Alert deliveries attempted, by channel and outcome",
			},
			[]string{"channel", "status"},
		),
		DeliveryTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alert_delivery_duration_seconds",
				Help:    "Time spent delivering one alert to one channel",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
	}
}

// Sent records one delivery attempt on a channel.
func (m *Alerting) Sent(channel string, ok bool, seconds float64) {
	status := StatusOK
	if !ok {
		status = StatusError
	}
	m.AlertsSent.WithLabelValues(channel, status).Inc()
	m.DeliveryTime.WithLabelValues(channel).Observe(seconds)
}
