// Package httptransport assembles the HTTP surface: the middleware chain,
// the domain handlers, and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	arbitrationhandler "trustline/internal/arbitration/handler"
	billinghandler "trustline/internal/billing/handler"
	directoryhandler "trustline/internal/directory/handler"
	escrowhandler "trustline/internal/escrow/handler"
	"trustline/internal/platform/middleware"
	platformmetrics "trustline/internal/platform/metrics"
	"trustline/pkg/platform/httputil"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies carries everything the router mounts. Handlers register their
// own routes; the router owns only the chain and the operational endpoints.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *platformmetrics.Metrics

	Auth        *AuthHandler
	Directory   *directoryhandler.Handler
	Billing     *billinghandler.Handler
	Escrow      *escrowhandler.Handler
	Arbitration *arbitrationhandler.Handler

	RequireAuth func(http.Handler) http.Handler

	// HealthChecks maps a dependency name to its probe. Empty is fine; the
	// in-memory deployment has nothing to probe.
	HealthChecks map[string]HealthCheck
}

// NewRouter builds the full HTTP handler.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/healthz", handleHealth(deps.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	if deps.Auth != nil {
		deps.Auth.Register(r)
	}
	deps.Directory.Register(r, deps.RequireAuth)
	deps.Billing.Register(r, deps.RequireAuth)
	deps.Escrow.Register(r, deps.RequireAuth)
	deps.Arbitration.Register(r, deps.RequireAuth)

	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		code := http.StatusOK
		overall := "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}
		httputil.WriteJSON(w, code, map[string]any{
			"status": overall,
			"checks": status,
		})
	}
}
