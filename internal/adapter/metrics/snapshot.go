package metrics

import "github.com/prometheus/client_golang/prometheus"

// SnapshotMetrics holds Prometheus metrics for initial snapshot fetches.
type SnapshotMetrics struct {
	Fetches      *prometheus.CounterVec
	Coalesced    prometheus.Counter
	Duration     prometheus.Histogram
	BreakerState prometheus.Gauge
}

// NewSnapshotMetrics creates and registers snapshot metrics on the given registry.
func NewSnapshotMetrics(reg prometheus.Registerer) *SnapshotMetrics {
	m := &SnapshotMetrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "fetches_total",
			Help:      "Total number of snapshot fetches, by result.",
		}, []string{"result"}),
		Coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "coalesced_total",
			Help:      "Total number of snapshot requests served by an in-flight fetch.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of snapshot repository queries.",
			Buckets:   prometheus.DefBuckets,
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "circuit_breaker_state",
			Help:      "Snapshot circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Fetches, m.Coalesced, m.Duration, m.BreakerState)
	return m
}
