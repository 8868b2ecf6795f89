package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the escrow receipt store.
type Metrics struct {
	Deposits    prometheus.Counter
	Withdrawals *prometheus.CounterVec
}

// New creates and registers all escrow metrics.
func New() *Metrics {
	return &Metrics{
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustline_escrow_deposits_total",
			Help: "Escrow receipts created.",
		}),
		Withdrawals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_escrow_withdrawals_total",
			Help: "Escrow withdrawals, by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncDeposit() {
	if m != nil {
		m.Deposits.Inc()
	}
}

func (m *Metrics) IncWithdrawal(kind string) {
	if m != nil {
		m.Withdrawals.WithLabelValues(kind).Inc()
	}
}
