package records

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the event store.
type Metrics struct {
	Appended       *prometheus.CounterVec
	Rejected       prometheus.Counter
	Evicted        *prometheus.CounterVec
	PatternMatches *prometheus.CounterVec
	MirrorFailures prometheus.Counter
	MirrorDropped  prometheus.Counter
	MirrorCircuit  prometheus.Gauge
	SearchDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with event store metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Appended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_records_appended_total",
			Help: "Total number of records appended, by level",
		}, []string{"level"}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_records_rejected_total",
			Help: "Total number of records rejected by validation",
		}),
		Evicted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_records_evicted_total",
			Help: "Total number of records evicted by the per-category cap",
		}, []string{"category"}),
		PatternMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_records_pattern_matches_total",
			Help: "Total number of alert trigger matches on ingested records",
		}, []string{"trigger"}),
		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_records_mirror_failures_total",
			Help: "Total number of failed writes to the durable mirror",
		}),
		MirrorDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_records_mirror_dropped_total",
			Help: "Total number of mirror operations dropped because the queue was full or the circuit open",
		}),
		MirrorCircuit: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "attest_records_mirror_circuit_open",
			Help: "Mirror circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_records_search_duration_seconds",
			Help:    "Duration of record searches",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
	}
}

func (m *Metrics) IncAppended(level Level) { m.Appended.WithLabelValues(string(level)).Inc() }

func (m *Metrics) IncRejected() { m.Rejected.Inc() }

func (m *Metrics) AddEvicted(category string, n int) {
	m.Evicted.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) IncPatternMatch(trigger string) { m.PatternMatches.WithLabelValues(trigger).Inc() }

func (m *Metrics) IncMirrorFailure() { m.MirrorFailures.Inc() }

func (m *Metrics) IncMirrorDropped() { m.MirrorDropped.Inc() }

// SetMirrorCircuitOpen sets the mirror circuit state gauge.
func (m *Metrics) SetMirrorCircuitOpen(open bool) {
	if open {
		m.MirrorCircuit.Set(1)
	} else {
		m.MirrorCircuit.Set(0)
	}
}

func (m *Metrics) ObserveSearch(seconds float64) { m.SearchDuration.Observe(seconds) }
