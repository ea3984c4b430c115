package audittrail

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit trail.
type Metrics struct {
	Events        *prometheus.CounterVec
	BufferSize    prometheus.Gauge
	BufferDropped prometheus.Counter
	Anonymized    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with audit trail metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Events: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_audit_events_total",
			Help: "Total number of audit events recorded, by risk level and outcome",
		}, []string{"risk_level", "outcome"}),
		BufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "attest_audit_buffer_size",
			Help: "Current number of events held in the audit buffer",
		}),
		BufferDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_audit_buffer_dropped_total",
			Help: "Total number of audit events dropped from the buffer on overflow",
		}),
		Anonymized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_audit_events_anonymized_total",
			Help: "Total number of audit events anonymized by subject erasure",
		}),
	}
}

func (m *Metrics) IncEvent(risk RiskLevel, outcome Outcome) {
	m.Events.WithLabelValues(string(risk), string(outcome)).Inc()
}
