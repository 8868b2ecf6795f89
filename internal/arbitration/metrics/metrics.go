package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the arbitration engine.
type Metrics struct {
	PanelsCreated prometheus.Counter
	Signatures    prometheus.Counter
}

// New creates and registers all arbitration metrics.
func New() *Metrics {
	return &Metrics{
		PanelsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustline_arbitration_panels_created_total",
			Help: "Arbitration panels created or replaced.",
		}),
		Signatures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustline_arbitration_signatures_total",
			Help: "Cosigner signatures recorded, duplicates excluded.",
		}),
	}
}

func (m *Metrics) IncPanelCreated() {
	if m != nil {
		m.PanelsCreated.Inc()
	}
}

func (m *Metrics) IncSignature() {
	if m != nil {
		m.Signatures.Inc()
	}
}
