package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bugtrack/bugtrack/internal/shared"
)

// PermissionsHandler exposes the current actor's effective permission set.
type PermissionsHandler struct {
	logger   *slog.Logger
	resolver *Resolver
}

// NewPermissionsHandler constructs the handler.
func NewPermissionsHandler(logger *slog.Logger, resolver *Resolver) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, resolver: resolver}
}

// MountRoutes registers permission introspection routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.showEffective)
}

type effectiveResponse struct {
	Roles       []string    `json:"roles"`
	Permissions Permissions `json:"permissions"`
}

func (h *PermissionsHandler) showEffective(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	perms, err := h.resolver.EffectiveForPrincipal(r.Context(), actor)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, effectiveResponse{
		Roles:       actor.RoleCodes,
		Permissions: perms,
	})
}
