package retention

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for retention and erasure.
type Metrics struct {
	Purged          *prometheus.CounterVec
	Retained        *prometheus.CounterVec
	Violations      *prometheus.CounterVec
	ArchiveFailures *prometheus.CounterVec
	CleanupDuration prometheus.Histogram
	Erasures        prometheus.Counter
	Conflicts       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with retention metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Purged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_retention_purged_total",
			Help: "Total number of records purged by retention cleanup",
		}, []string{"category"}),
		Retained: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_retention_retained_total",
			Help: "Total number of expired records kept because they are not deletable",
		}, []string{"category"}),
		Violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_retention_violations_total",
			Help: "Total number of protected records found past their window without legal hold",
		}, []string{"category"}),
		ArchiveFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_retention_archive_failures_total",
			Help: "Total number of categories whose purge was skipped because archiving failed",
		}, []string{"category"}),
		CleanupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_retention_cleanup_duration_seconds",
			Help:    "Duration of retention cleanup runs",
			Buckets: prometheus.DefBuckets,
		}),
		Erasures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_subject_erasures_total",
			Help: "Total number of right-to-be-forgotten requests processed",
		}),
		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_redaction_conflicts_total",
			Help: "Total number of records anonymized because they could not be deleted",
		}),
	}
}

func (m *Metrics) observeCategory(category string, r CategoryResult) {
	m.Purged.WithLabelValues(category).Add(float64(r.Purged))
	m.Retained.WithLabelValues(category).Add(float64(r.Retained))
	m.Violations.WithLabelValues(category).Add(float64(r.Violations))
}
