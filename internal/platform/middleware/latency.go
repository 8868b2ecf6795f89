package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trustline/internal/platform/metrics"
)

// Latency records request duration and count against the matched chi route
// pattern so path parameters don't explode label cardinality.
func Latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(sw.status)
			m.RequestLatency.WithLabelValues(route, r.Method, status).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		})
	}
}
