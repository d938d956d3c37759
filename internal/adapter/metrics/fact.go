package metrics

import "github.com/prometheus/client_golang/prometheus"

// FactMetrics holds Prometheus metrics for the fact relay.
type FactMetrics struct {
	FactsRelayed  *prometheus.CounterVec
	FactsRejected *prometheus.CounterVec
}

// NewFactMetrics creates and registers fact relay metrics on the given registry.
func NewFactMetrics(reg prometheus.Registerer) *FactMetrics {
	m := &FactMetrics{
		FactsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "facts_relayed_total",
			Help:      "Total number of facts relayed to rooms, by kind and source.",
		}, []string{"kind", "source"}),
		FactsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "facts_rejected_total",
			Help:      "Total number of facts dropped before relay, by source.",
		}, []string{"source"}),
	}

	reg.MustRegister(m.FactsRelayed, m.FactsRejected)
	return m
}
