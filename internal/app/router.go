package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/servicedesk/servicedesk/internal/observability"
	"github.com/servicedesk/servicedesk/internal/platform/httpx"
	"github.com/servicedesk/servicedesk/internal/rbac"
	"github.com/servicedesk/servicedesk/internal/tickets"
	"github.com/servicedesk/servicedesk/internal/users"
	"github.com/servicedesk/servicedesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Authenticate   func(http.Handler) http.Handler
	RBACHandler    *rbac.Handler
	UsersHandler   *users.Handler
	TicketsHandler *tickets.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with servicedesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if params.Authenticate != nil {
			r.Use(params.Authenticate)
		}
		if params.RBACHandler != nil {
			r.Route("/permissions", params.RBACHandler.MountPermissionRoutes)
			r.Route("/roles", params.RBACHandler.MountRoleRoutes)
		}
		r.Route("/users", func(r chi.Router) {
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.RBACHandler != nil {
				params.RBACHandler.MountUserRoleRoutes(r)
			}
		})
		if params.TicketsHandler != nil {
			r.Route("/tickets", params.TicketsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "")
	})
	return r
}
