package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide Prometheus metrics. Domain packages register
// their own counters in their metrics subpackages; this one covers transport.
type Metrics struct {
	RequestLatency *prometheus.HistogramVec
	RequestsTotal  *prometheus.CounterVec
}

// New creates and registers all platform metrics.
func New() *Metrics {
	return &Metrics{
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustline_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustline_http_requests_total",
			Help: "Total HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
	}
}
