package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the connection graph.
type Metrics struct {
	Requested        prometheus.Counter
	Accepted         prometheus.Counter
	Rejected         prometheus.Counter
	ResolveConflicts prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Requested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_connections_requested_total",
			Help: "Total pending connection requests created",
		}),
		Accepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_connections_accepted_total",
			Help: "Total connection requests accepted",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_connections_rejected_total",
			Help: "Total connection requests rejected",
		}),
		ResolveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_connection_resolve_conflicts_total",
			Help: "Total respond attempts that lost the conditional update race",
		}),
	}
}

func (m *Metrics) IncRequested() {
	if m != nil {
		m.Requested.Inc()
	}
}

func (m *Metrics) IncAccepted() {
	if m != nil {
		m.Accepted.Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

func (m *Metrics) IncResolveConflict() {
	if m != nil {
		m.ResolveConflicts.Inc()
	}
}
