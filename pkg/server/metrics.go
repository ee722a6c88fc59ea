package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "photon").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry registers and gathers the collectors.
	// Default: a new prometheus.Registry.
	Registry *prometheus.Registry
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the server's Prometheus collectors. It implements
// conn.Recorder and rmi.Observer and is safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	connectionsActive   *prometheus.GaugeVec
	connectionsTotal    *prometheus.CounterVec
	connectionsRejected *prometheus.CounterVec
	bytesReceived       prometheus.Counter
	bytesSent           prometheus.Counter
	chunksReceived      *prometheus.CounterVec
	chunkSize           prometheus.Histogram
	messagesReceived    *prometheus.CounterVec
	messagesSent        *prometheus.CounterVec
	protocolErrors      *prometheus.CounterVec
	stateTransitions    *prometheus.CounterVec
	callsTotal          *prometheus.CounterVec
	callDuration        *prometheus.HistogramVec
}

// NewMetrics creates and registers the server collectors.
//
// Metrics collected:
//   - photon_connections_active: Gauge of open connections by transport
//   - photon_connections_total: Counter of accepted connections by transport
//   - photon_connections_rejected_total: Counter of connections refused at the limit
//   - photon_bytes_received_total / photon_bytes_sent_total: Protocol bytes
//   - photon_chunks_received_total: Counter of chunks by channel
//   - photon_chunk_size_bytes: Histogram of inbound chunk sizes
//   - photon_messages_received_total / photon_messages_sent_total: Messages by type
//   - photon_protocol_errors_total: Counter of protocol errors by code
//   - photon_state_transitions_total: Counter of handshake transitions by target state
//   - photon_rmi_calls_total: Counter of dispatched calls by method and status
//   - photon_rmi_call_duration_seconds: Histogram of call duration by method
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "photon",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(config.Registry)
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}

	return &Metrics{
		registry: config.Registry,

		connectionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_active",
			Help:        "Number of open protocol connections",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),
		connectionsTotal:    counterVec("connections_total", "Total number of accepted connections", "transport"),
		connectionsRejected: counterVec("connections_rejected_total", "Total number of connections refused at the connection limit", "transport"),
		bytesReceived:       counter("bytes_received_total", "Total protocol bytes received"),
		bytesSent:           counter("bytes_sent_total", "Total protocol bytes sent"),
		chunksReceived:      counterVec("chunks_received_total", "Total chunks received by channel", "channel"),
		chunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "chunk_size_bytes",
			Help:        "Size of received chunks in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{64, 512, 4096, 16384, 65536, 1048576, 4194303},
		}),
		messagesReceived: counterVec("messages_received_total", "Total messages received by type", "type"),
		messagesSent:     counterVec("messages_sent_total", "Total messages sent by type", "type"),
		protocolErrors:   counterVec("protocol_errors_total", "Total protocol errors by code", "code"),
		stateTransitions: counterVec("state_transitions_total", "Total handshake state transitions by target state", "state"),
		callsTotal:       counterVec("rmi_calls_total", "Total remote method calls by method and status", "method", "status"),
		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "rmi_call_duration_seconds",
			Help:        "Remote method call duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) connectionOpened(kind string) {
	m.connectionsTotal.WithLabelValues(kind).Inc()
	m.connectionsActive.WithLabelValues(kind).Inc()
}

func (m *Metrics) connectionClosed(kind string) {
	m.connectionsActive.WithLabelValues(kind).Dec()
}

func (m *Metrics) connectionRejected(kind string) {
	m.connectionsRejected.WithLabelValues(kind).Inc()
}

// BytesReceived implements conn.Recorder.
func (m *Metrics) BytesReceived(n int) { m.bytesReceived.Add(float64(n)) }

// BytesSent implements conn.Recorder.
func (m *Metrics) BytesSent(n int) { m.bytesSent.Add(float64(n)) }

// ChunkReceived implements conn.Recorder.
func (m *Metrics) ChunkReceived(channel uint16, size int) {
	m.chunksReceived.WithLabelValues(strconv.Itoa(int(channel))).Inc()
	m.chunkSize.Observe(float64(size))
}

// MessageReceived implements conn.Recorder.
func (m *Metrics) MessageReceived(t protocol.MessageType) {
	m.messagesReceived.WithLabelValues(t.String()).Inc()
}

// MessageSent implements conn.Recorder.
func (m *Metrics) MessageSent(t protocol.MessageType) {
	m.messagesSent.WithLabelValues(t.String()).Inc()
}

// ProtocolError implements conn.Recorder.
func (m *Metrics) ProtocolError(code protocol.ErrorCode) {
	m.protocolErrors.WithLabelValues(code.String()).Inc()
}

// StateChanged implements conn.Recorder.
func (m *Metrics) StateChanged(to conn.State) {
	m.stateTransitions.WithLabelValues(to.String()).Inc()
}

// ObserveCall implements rmi.Observer.
func (m *Metrics) ObserveCall(method string, d time.Duration, faulted bool) {
	status := "ok"
	if faulted {
		status = "fault"
	}
	m.callsTotal.WithLabelValues(method, status).Inc()
	m.callDuration.WithLabelValues(method).Observe(d.Seconds())
}
