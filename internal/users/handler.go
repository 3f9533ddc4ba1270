package users

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bugtrack/bugtrack/internal/rbac"
	"github.com/bugtrack/bugtrack/internal/shared"
)

// Handler manages user endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers user routes. The admin mutation route carries no
// permission gate: the service loads the target first so an unknown id 404s
// before any role lookup, then authorizes against the loaded record.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/me", h.showMe)
		r.Patch("/me", h.updateMe)
		r.Patch("/{userID}", h.updateUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewData))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.RespondError(w, shared.ErrNotFound)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) showMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), actor.ID)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	update, err := decodeProfileUpdate(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	user, err := h.service.UpdateMe(r.Context(), actor, update)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	// Malformed ids 404 before anything else; probing cannot tell a bad id
	// from a missing record.
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.RespondError(w, shared.ErrNotFound)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	update, err := decodeProfileUpdate(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), actor, targetID, update)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, user)
}

type profileUpdateRequest struct {
	FullName  *string          `json:"fullName"`
	Email     *string          `json:"email"`
	Password  *string          `json:"password"`
	Role      *json.RawMessage `json:"role"`
	RoleCodes *[]string        `json:"roleCodes"`
}

// decodeProfileUpdate decodes the shared patch shape. Both a legacy "role"
// field and the list form mark a role change attempt.
func decodeProfileUpdate(r *http.Request) (ProfileUpdate, error) {
	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ProfileUpdate{}, shared.ErrValidation
	}
	update := ProfileUpdate{
		FullName:  req.FullName,
		Email:     req.Email,
		Password:  req.Password,
		RoleCodes: req.RoleCodes,
	}
	if req.Role != nil {
		update.RoleChange = true
		if update.RoleCodes == nil {
			claim := rbac.ParseRoleClaim(string(*req.Role))
			codes := claim.Codes()
			update.RoleCodes = &codes
		}
	}
	if req.RoleCodes != nil {
		update.RoleChange = true
	}
	return update, nil
}
