package alerting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	Published       *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	Forwarded       *prometheus.CounterVec
	ForwardFailures *prometheus.CounterVec
	SinkCircuitOpen *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with alerting metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_notifications_published_total",
			Help: "Total number of notifications published on the bus",
		}, []string{"kind"}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_notifications_dropped_total",
			Help: "Total number of notifications dropped because a subscriber was full",
		}, []string{"kind"}),
		Forwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_notifications_forwarded_total",
			Help: "Total number of notifications delivered to an external sink",
		}, []string{"sink"}),
		ForwardFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_notifications_forward_failures_total",
			Help: "Total number of notifications an external sink rejected or skipped",
		}, []string{"sink"}),
		SinkCircuitOpen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "attest_notification_sink_circuit_open",
			Help: "Circuit breaker state per sink (0=closed/healthy, 1=open/unhealthy)",
		}, []string{"sink"}),
	}
}

func (m *Metrics) IncPublished(kind Kind) { m.Published.WithLabelValues(string(kind)).Inc() }

func (m *Metrics) IncDropped(kind Kind) { m.Dropped.WithLabelValues(string(kind)).Inc() }

func (m *Metrics) IncForwarded(sink string) { m.Forwarded.WithLabelValues(sink).Inc() }

func (m *Metrics) IncForwardFailures(sink string) { m.ForwardFailures.WithLabelValues(sink).Inc() }

// SetCircuitOpen sets the circuit breaker state gauge for a sink.
func (m *Metrics) SetCircuitOpen(sink string, open bool) {
	if open {
		m.SinkCircuitOpen.WithLabelValues(sink).Set(1)
	} else {
		m.SinkCircuitOpen.WithLabelValues(sink).Set(0)
	}
}
