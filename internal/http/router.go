// Package httpapi assembles the HTTP surface: middleware chain, public
// health/metrics endpoints, and the authenticated API routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"txgate/internal/engine"
	"txgate/internal/queue"
	"txgate/internal/reviewconfig"
	"txgate/internal/stats"
	"txgate/pkg/platform/httputil"
	"txgate/pkg/platform/middleware/auth"
	"txgate/pkg/platform/middleware/metadata"
	"txgate/pkg/platform/middleware/requestid"
	"txgate/pkg/platform/middleware/requesttime"
)

// HealthCheck probes one dependency. Nil checks are skipped so callers can
// pass probes only for the backends actually configured.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Engine    *engine.Handler
	Queue     *queue.Handler
	Config    *reviewconfig.Handler
	Stats     *stats.Handler
	Validator auth.TokenValidator
	Logger    *slog.Logger
	Health    map[string]HealthCheck
}

// NewRouter builds the full router. Health and metrics are unauthenticated;
// everything else requires a bearer token, and mutating config plus queue
// rollback additionally require the admin role.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))

		deps.Engine.Register(r)
		deps.Queue.Register(r)
		deps.Config.Register(r)
		deps.Stats.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(deps.Logger))
			deps.Queue.RegisterAdmin(r)
			deps.Config.RegisterAdmin(r)
		})
	})

	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
