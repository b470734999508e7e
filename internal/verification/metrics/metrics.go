package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the verification state machine.
type Metrics struct {
	Submitted prometheus.Counter
	Approved  prometheus.Counter
	Rejected  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_verification_submitted_total",
			Help: "Total credential review requests submitted",
		}),
		Approved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_verification_approved_total",
			Help: "Total credential reviews approved",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_verification_rejected_total",
			Help: "Total credential reviews rejected",
		}),
	}
}

func (m *Metrics) IncSubmitted() {
	if m != nil {
		m.Submitted.Inc()
	}
}

func (m *Metrics) IncApproved() {
	if m != nil {
		m.Approved.Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}
