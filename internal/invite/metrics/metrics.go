package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the invite ledger.
type Metrics struct {
	Issued          prometheus.Counter
	Redeemed        prometheus.Counter
	RedeemConflicts prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_invites_issued_total",
			Help: "Total invite codes issued",
		}),
		Redeemed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_invites_redeemed_total",
			Help: "Total invite codes redeemed (auto-connect edges created)",
		}),
		RedeemConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medigraph_invite_redeem_conflicts_total",
			Help: "Total redemption attempts that lost the conditional update race",
		}),
	}
}

func (m *Metrics) IncIssued() {
	if m != nil {
		m.Issued.Inc()
	}
}

func (m *Metrics) IncRedeemed() {
	if m != nil {
		m.Redeemed.Inc()
	}
}

func (m *Metrics) IncRedeemConflict() {
	if m != nil {
		m.RedeemConflicts.Inc()
	}
}
