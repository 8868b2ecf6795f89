package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the billing ledger.
type Metrics struct {
	BillsSubmitted   prometheus.Counter
	BillsUnsubmitted prometheus.Counter
	BillsResolved    *prometheus.CounterVec
	BalanceFunded    prometheus.Counter
}

// New creates and registers all billing metrics.
func New() *Metrics {
	return &Metrics{
		BillsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustline_billing_bills_submitted_total",
			Help: "Bills placed into a pair's pending slot.",
		}),
		BillsUnsubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustline_billing_bills_unsubmitted_total",
			Help: "Pending bills withdrawn by the retainor.",
		}),
		BillsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_billing_bills_resolved_total",
			Help: "Bills resolved into history, by status.",
		}, []string{"status"}),
		BalanceFunded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustline_billing_balance_funded_total",
			Help: "Retainer balance funding operations.",
		}),
	}
}

func (m *Metrics) IncSubmitted() {
	if m != nil {
		m.BillsSubmitted.Inc()
	}
}

func (m *Metrics) IncUnsubmitted() {
	if m != nil {
		m.BillsUnsubmitted.Inc()
	}
}

func (m *Metrics) IncResolved(status string) {
	if m != nil {
		m.BillsResolved.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncFunded() {
	if m != nil {
		m.BalanceFunded.Inc()
	}
}
