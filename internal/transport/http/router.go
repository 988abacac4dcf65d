// Package httptransport assembles the chi router: the shared middleware chain,
// health and metrics endpoints, and every module's routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/platform/middleware/auth"
	"crowdfund/pkg/platform/middleware/device"
	"crowdfund/pkg/platform/middleware/metadata"
	"crowdfund/pkg/platform/middleware/request"
	"crowdfund/pkg/platform/middleware/requesttime"
)

// UserRoutes are mounted behind bearer auth.
type UserRoutes interface {
	Register(r chi.Router)
}

// AdminRoutes are mounted behind the admin token.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Config carries everything the router needs. Nil route sets are skipped.
type Config struct {
	Logger         *slog.Logger
	Observer       request.Observer
	MetricsHandler http.Handler
	Validator      auth.TokenValidator
	Secrets        auth.SecretSource
	AdminHashName  string
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
	// RateLimit runs after authentication so budgets are per user.
	RateLimit func(http.Handler) http.Handler

	User  []UserRoutes
	Admin []AdminRoutes
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(request.Logger(cfg.Logger))
	if cfg.Observer != nil {
		r.Use(request.Metrics(cfg.Observer))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		api.Use(request.RequireJSON)
		if cfg.RequestTimeout > 0 {
			api.Use(chimw.Timeout(cfg.RequestTimeout))
		}

		api.Group(func(user chi.Router) {
			user.Use(auth.RequireAuth(cfg.Validator, cfg.Logger))
			if cfg.RateLimit != nil {
				user.Use(cfg.RateLimit)
			}
			for _, routes := range cfg.User {
				routes.Register(user)
			}
		})

		api.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAdminToken(cfg.Secrets, cfg.AdminHashName, cfg.Logger))
			if cfg.RateLimit != nil {
				admin.Use(cfg.RateLimit)
			}
			for _, routes := range cfg.Admin {
				routes.RegisterAdmin(admin)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not_found", ErrorDescription: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{Error: "method_not_allowed"})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every check concurrently; any failure makes the service
// unhealthy.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var mu sync.Mutex
		results := make(map[string]string, len(names))
		var g errgroup.Group
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				status := "ok"
				err := check(ctx)
				if err != nil {
					status = err.Error()
				}
				mu.Lock()
				results[name] = status
				mu.Unlock()
				return err
			})
		}
		resp := healthResponse{Status: "ok", Checks: results}
		status := http.StatusOK
		if err := g.Wait(); err != nil {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
