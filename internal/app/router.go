package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/warden-app/warden/internal/auth"
	"github.com/warden-app/warden/internal/groups"
	"github.com/warden-app/warden/internal/modules"
	"github.com/warden-app/warden/internal/observability"
	"github.com/warden-app/warden/internal/permissions"
	"github.com/warden-app/warden/internal/roles"
	"github.com/warden-app/warden/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthMiddleware auth.Middleware

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	GroupsHandler      *groups.Handler
	RolesHandler       *roles.Handler
	ModulesHandler     *modules.Handler
	PermissionsHandler *permissions.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with all routes mounted. Entity
// routes require a valid bearer token; per-action permission checks happen
// inside each handler's route groups.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r, params.AuthMiddleware)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/groups", params.GroupsHandler.MountRoutes)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/modules", params.ModulesHandler.MountRoutes)
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
