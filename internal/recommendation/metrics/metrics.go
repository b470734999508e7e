package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the recommendation ledger.
type Metrics struct {
	Created    prometheus.Counter
	Duplicates prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_recommendations_created_total",
			Help: "Total recommendations recorded",
		}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_recommendation_duplicates_total",
			Help: "Total recommendation attempts rejected by the uniqueness constraint",
		}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

func (m *Metrics) IncDuplicate() {
	if m != nil {
		m.Duplicates.Inc()
	}
}
