package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the relationship directory.
type Metrics struct {
	EntriesSet *prometheus.CounterVec
}

// New creates and registers all directory metrics.
func New() *Metrics {
	return &Metrics{
		EntriesSet: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_directory_entries_set_total",
			Help: "Directory entries written, by role.",
		}, []string{"role"}),
	}
}

func (m *Metrics) IncRetainorSet() {
	if m != nil {
		m.EntriesSet.WithLabelValues("retainor").Inc()
	}
}

func (m *Metrics) IncRetaineeSet() {
	if m != nil {
		m.EntriesSet.WithLabelValues("retainee").Inc()
	}
}
