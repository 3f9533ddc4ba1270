package bugs

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bugtrack/bugtrack/internal/rbac"
	"github.com/bugtrack/bugtrack/internal/shared"
)

// Handler manages bug endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers bug routes. Mutation routes carry only the
// authentication gate; the resource-scoped policies run in the service after
// the bug is loaded, so a malformed or unknown id 404s before any role
// lookup.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermViewData))
		r.Get("/", h.listBugs)
		r.Get("/{bugID}", h.getBug)
		r.Get("/{bugID}/comments", h.listComments)
		r.Get("/{bugID}/tests", h.listTestCases)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermCreateBug))
		r.Post("/", h.createBug)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Patch("/{bugID}", h.editBug)
		r.Patch("/{bugID}/classify", h.classifyBug)
		r.Patch("/{bugID}/assign", h.assignBug)
		r.Patch("/{bugID}/close", h.closeBug)
		r.Post("/{bugID}/comments", h.addComment)
		r.Post("/{bugID}/tests", h.addTestCase)
	})
}

func (h *Handler) listBugs(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromQuery(r, 100)
	filters := ListFilters{
		Classification: r.URL.Query().Get("classification"),
		Search:         r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("closed"); raw != "" {
		if closed, err := strconv.ParseBool(raw); err == nil {
			filters.Closed = &closed
		}
	}
	if raw := r.URL.Query().Get("assignedTo"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filters.AssignedToID = &id
		}
	}
	if raw := r.URL.Query().Get("author"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filters.AuthorID = &id
		}
	}
	items, total, err := h.service.ListBugs(r.Context(), filters, perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Error("list bugs", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"bugs":       items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) getBug(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	bug, err := h.service.GetBug(r.Context(), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, bug)
}

func (h *Handler) createBug(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req CreateBugRequest
	if !h.decode(w, r, &req) {
		return
	}
	bug, err := h.service.CreateBug(r.Context(), actor, req)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, bug)
}

func (h *Handler) editBug(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	var req EditBugRequest
	if !h.decode(w, r, &req) {
		return
	}
	bug, err := h.service.EditBug(r.Context(), actor, id, req)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, bug)
}

func (h *Handler) classifyBug(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	var req ClassifyBugRequest
	if !h.decode(w, r, &req) {
		return
	}
	bug, err := h.service.ClassifyBug(r.Context(), actor, id, req)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, bug)
}

func (h *Handler) assignBug(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	var req AssignBugRequest
	if !h.decode(w, r, &req) {
		return
	}
	bug, err := h.service.AssignBug(r.Context(), actor, id, req)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, bug)
}

func (h *Handler) closeBug(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	var req CloseBugRequest
	if !h.decode(w, r, &req) {
		return
	}
	bug, err := h.service.SetClosed(r.Context(), actor, id, req)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, bug)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	var req AddCommentRequest
	if !h.decode(w, r, &req) {
		return
	}
	comment, err := h.service.AddComment(r.Context(), actor, id, req)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, comment)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	comments, err := h.service.ListComments(r.Context(), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *Handler) addTestCase(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	var req AddTestCaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	tc, err := h.service.AddTestCase(r.Context(), actor, id, req)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, tc)
}

func (h *Handler) listTestCases(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bugID(w, r)
	if !ok {
		return
	}
	cases, err := h.service.ListTestCases(r.Context(), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"testCases": cases})
}

// bugID parses the path id. Malformed ids are indistinguishable from missing
// records: both 404, and neither reaches permission resolution.
func (h *Handler) bugID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bugID"))
	if err != nil {
		shared.RespondError(w, shared.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		shared.RespondError(w, shared.ErrValidation)
		return false
	}
	return true
}
