// Package metrics holds the Prometheus collectors for the hub and the
// WebSocket transport. Every method is safe on a nil *Metrics so callers
// never need to guard against metrics being disabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wireroom"

// Metrics is the set of collectors the server updates.
type Metrics struct {
	rooms            prometheus.Gauge
	identities       prometheus.Gauge
	clients          prometheus.Gauge
	inboundFrames    prometheus.Counter
	malformedFrames  prometheus.Counter
	policyViolations *prometheus.CounterVec
	publishedFrames  prometheus.Counter
	publishedBytes   prometheus.Counter
	slowConsumers    prometheus.Counter
	rateLimited      prometheus.Counter
	connections      prometheus.Counter
	tickDuration     prometheus.Histogram
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of live rooms",
		}),
		identities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities",
			Help:      "Number of identities with at least one connection",
		}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients",
			Help:      "Number of open connections",
		}),
		inboundFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_frames_total",
			Help:      "Binary messages received from clients",
		}),
		malformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Messages abandoned because of malformed input or an unknown opcode",
		}),
		policyViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_violations_total",
			Help:      "Records ignored because they broke a room rule",
		}, []string{"code"}),
		publishedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_frames_total",
			Help:      "Frames published to room and directory topics",
		}),
		publishedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_bytes_total",
			Help:      "Bytes published to room and directory topics",
		}),
		slowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumers_total",
			Help:      "Connections closed because their send queue was full",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_messages_total",
			Help:      "Inbound messages dropped by the per-connection rate limit",
		}),
		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_total",
			Help:      "Accepted WebSocket connections",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent flushing every room on one tick",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
	}
}

// SetRooms records the number of live rooms.
func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

// SetIdentities records the number of live identities.
func (m *Metrics) SetIdentities(n int) {
	if m == nil {
		return
	}
	m.identities.Set(float64(n))
}

// SetClients records the number of registered connections.
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

// InboundFrame counts one received message.
func (m *Metrics) InboundFrame() {
	if m == nil {
		return
	}
	m.inboundFrames.Inc()
}

// MalformedFrame counts one abandoned message.
func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.malformedFrames.Inc()
}

// PolicyViolation counts one ignored record by error code.
func (m *Metrics) PolicyViolation(code string) {
	if m == nil {
		return
	}
	m.policyViolations.WithLabelValues(code).Inc()
}

// Published counts one published frame of n bytes.
func (m *Metrics) Published(n int) {
	if m == nil {
		return
	}
	m.publishedFrames.Inc()
	m.publishedBytes.Add(float64(n))
}

// SlowConsumer counts one kicked connection.
func (m *Metrics) SlowConsumer() {
	if m == nil {
		return
	}
	m.slowConsumers.Inc()
}

// RateLimited counts one dropped inbound message.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Connection counts one accepted WebSocket connection.
func (m *Metrics) Connection() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ObserveTick records how long one tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
