package assessment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for compliance assessment.
type Metrics struct {
	Assessments   *prometheus.CounterVec
	Score         *prometheus.GaugeVec
	ProbeFailures *prometheus.CounterVec
	Gaps          *prometheus.CounterVec
	Duration      prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with assessment metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Assessments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_assessments_total",
			Help: "Total number of compliance assessments run, by regulation and status",
		}, []string{"regulation", "status"}),
		Score: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "attest_compliance_score",
			Help: "Overall score of the latest assessment per regulation",
		}, []string{"regulation"}),
		ProbeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_probe_failures_total",
			Help: "Total number of automated probes that failed, timed out or panicked",
		}, []string{"requirement"}),
		Gaps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_compliance_gaps_total",
			Help: "Total number of compliance gaps identified, by severity",
		}, []string{"severity"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_assessment_duration_seconds",
			Help:    "Duration of compliance assessment runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
