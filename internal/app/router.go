package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bugtrack/bugtrack/internal/audit"
	"github.com/bugtrack/bugtrack/internal/auth"
	"github.com/bugtrack/bugtrack/internal/bugs"
	"github.com/bugtrack/bugtrack/internal/rbac"
	"github.com/bugtrack/bugtrack/internal/roles"
	"github.com/bugtrack/bugtrack/internal/shared"
	"github.com/bugtrack/bugtrack/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	BugsHandler        *bugs.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	AuditHandler       *audit.Handler
	PermissionsHandler *rbac.PermissionsHandler
	RBACMiddleware     rbac.Middleware
}

// NewRouter constructs the chi.Router with tracker defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}
	r.Use(params.RBACMiddleware.WithPrincipal)
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/bugs", params.BugsHandler.MountRoutes)
	r.Route("/api/users", params.UsersHandler.MountRoutes)
	r.Route("/api/roles", params.RolesHandler.MountRoutes)
	if params.AuditHandler != nil {
		r.Route("/api/audit", params.AuditHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/api/permissions", params.PermissionsHandler.MountRoutes)
	}

	return r
}
