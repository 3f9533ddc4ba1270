package rbac

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bugtrack/bugtrack/internal/shared"
)

func requestWithSession(t *testing.T, userID, rolesJSON string) *http.Request {
	t.Helper()
	sess := &shared.Session{}
	sess.SetUser(userID)
	sess.Set(shared.SessionKeyEmail, "dev@bugtrack.local")
	sess.Set(shared.SessionKeyRoles, rolesJSON)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithPrincipalAttachesActor(t *testing.T) {
	userID := uuid.New()
	mw := Middleware{Resolver: NewResolver(&stubRoleStore{}, nil)}

	var captured shared.Principal
	var ok bool
	handler := mw.WithPrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, ok = shared.PrincipalFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession(t, userID.String(), `["DEV","QA"]`))

	require.True(t, ok)
	require.Equal(t, userID, captured.ID)
	require.Equal(t, "dev@bugtrack.local", captured.Email)
	require.Equal(t, []string{"DEV", "QA"}, captured.RoleCodes)
}

func TestWithPrincipalPassesThroughAnonymous(t *testing.T) {
	mw := Middleware{Resolver: NewResolver(&stubRoleStore{}, nil)}

	var ok bool
	handler := mw.WithPrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.False(t, ok)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthenticated(t *testing.T) {
	mw := Middleware{Resolver: NewResolver(&stubRoleStore{}, nil)}

	var hit bool
	handler := mw.RequireAuthenticated(okHandler(&hit))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, hit)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{ID: uuid.New()}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, hit)
}

func authedRequest(p shared.Principal) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := shared.ContextWithPrincipal(req.Context(), p)
	return req.WithContext(ContextWithMemo(ctx))
}

func TestRequireAllGate(t *testing.T) {
	store := &stubRoleStore{roles: []Role{
		{Code: "QA", Permissions: map[string]bool{PermViewData: true, PermAddTestCase: true}},
	}}
	mw := Middleware{Resolver: NewResolver(store, nil)}
	actor := shared.Principal{ID: uuid.New(), RoleCodes: []string{"QA"}}

	var hit bool
	allow := mw.RequireAll(PermViewData, PermAddTestCase)(okHandler(&hit))
	rec := httptest.NewRecorder()
	allow.ServeHTTP(rec, authedRequest(actor))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, hit)

	hit = false
	deny := mw.RequireAll(PermViewData, PermCloseAnyBug)(okHandler(&hit))
	rec = httptest.NewRecorder()
	deny.ServeHTTP(rec, authedRequest(actor))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, hit)
}

func TestRequireAnyGate(t *testing.T) {
	store := &stubRoleStore{roles: []Role{
		{Code: "BA", Permissions: map[string]bool{PermClassifyAnyBug: true}},
	}}
	mw := Middleware{Resolver: NewResolver(store, nil)}
	actor := shared.Principal{ID: uuid.New(), RoleCodes: []string{"BA"}}

	var hit bool
	allow := mw.RequireAny(PermViewData, PermClassifyAnyBug)(okHandler(&hit))
	rec := httptest.NewRecorder()
	allow.ServeHTTP(rec, authedRequest(actor))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, hit)

	hit = false
	deny := mw.RequireAny(PermEditAnyUser, PermAssignRoles)(okHandler(&hit))
	rec = httptest.NewRecorder()
	deny.ServeHTTP(rec, authedRequest(actor))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, hit)
}

func TestGateRejectsAnonymous(t *testing.T) {
	mw := Middleware{Resolver: NewResolver(&stubRoleStore{}, nil)}

	var hit bool
	handler := mw.RequireAll(PermViewData)(okHandler(&hit))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, hit)
}

func TestGateFailsClosedWhenStoreDown(t *testing.T) {
	store := &stubRoleStore{err: errors.New("connection refused")}
	mw := Middleware{Resolver: NewResolver(store, nil)}
	actor := shared.Principal{ID: uuid.New(), RoleCodes: []string{"DEV"}}

	var hit bool
	handler := mw.RequireAll(PermViewData)(okHandler(&hit))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(actor))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.False(t, hit)
}

func TestGateResolvesOncePerRequest(t *testing.T) {
	store := &stubRoleStore{roles: []Role{
		{Code: "QA", Permissions: map[string]bool{PermViewData: true, PermAddTestCase: true}},
	}}
	mw := Middleware{Resolver: NewResolver(store, nil)}
	actor := shared.Principal{ID: uuid.New(), RoleCodes: []string{"QA"}}

	// Stacked gates on the same request share the memoized resolution.
	var hit bool
	handler := mw.RequireAll(PermViewData)(mw.RequireAny(PermAddTestCase)(okHandler(&hit)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(actor))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, hit)
	require.Equal(t, 1, store.calls)
}

func TestWithPrincipalSkipsMalformedUserID(t *testing.T) {
	mw := Middleware{Resolver: NewResolver(&stubRoleStore{}, nil)}

	var ok bool
	handler := mw.WithPrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession(t, "not-a-uuid", `["DEV"]`))
	require.False(t, ok)
	require.Equal(t, http.StatusOK, rec.Code)
}
