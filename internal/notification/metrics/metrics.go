package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	Sent    prometheus.Counter
	Failed  prometheus.Counter
	Dropped prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Sent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_notifications_sent_total",
			Help: "Total notifications delivered by any sender",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_notifications_failed_total",
			Help: "Total notification delivery failures",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_notifications_dropped_total",
			Help: "Total notifications dropped because the inbox was full",
		}),
	}
}

func (m *Metrics) IncSent() {
	if m != nil {
		m.Sent.Inc()
	}
}

func (m *Metrics) IncFailed() {
	if m != nil {
		m.Failed.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}
