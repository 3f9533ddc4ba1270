package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bugtrack/bugtrack/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// WithPrincipal builds the request principal from the session and attaches it
// together with a fresh permission memo. Role claims are normalized here,
// exactly once; downstream code only sees the canonical code list. Requests
// without a session user pass through unauthenticated so public routes keep
// working; the gates reject them.
func (m Middleware) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := shared.SessionFromContext(ctx)
		if sess == nil || strings.TrimSpace(sess.User()) == "" {
			next.ServeHTTP(w, r)
			return
		}
		actorID, err := uuid.Parse(strings.TrimSpace(sess.User()))
		if err != nil {
			m.log().Warn("session user id is not a uuid", slog.String("value", sess.User()))
			next.ServeHTTP(w, r)
			return
		}
		claim := ParseRoleClaim(sess.Get(shared.SessionKeyRoles))
		principal := shared.Principal{
			ID:        actorID,
			Email:     sess.Get(shared.SessionKeyEmail),
			RoleCodes: claim.Codes(),
		}
		ctx = shared.ContextWithPrincipal(ctx, principal)
		ctx = ContextWithMemo(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthenticated rejects requests without a principal. Mutation routes
// that authorize against the loaded resource use this alone, so a malformed
// resource id can 404 before any role lookup happens.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			shared.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAll ensures the current actor holds every listed permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := dedupe(perms)
	return m.gate(required, func(granted Permissions) []string {
		return granted.Missing(required...)
	})
}

// RequireAny ensures the current actor holds at least one listed permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := dedupe(perms)
	return m.gate(required, func(granted Permissions) []string {
		if granted.HasAny(required...) {
			return nil
		}
		return required
	})
}

// gate builds a middleware that resolves permissions and rejects when the
// missing function reports unmet requirements. The denial body is generic;
// the missing permissions are only logged.
func (m Middleware) gate(required []string, missing func(Permissions) []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				shared.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			granted, err := m.Resolver.EffectiveForPrincipal(r.Context(), actor)
			if err != nil {
				// Fail closed: an unreachable role store is a denial,
				// surfaced as 503 rather than 403.
				m.log().Error("permission resolution failed", slog.Any("error", err))
				shared.RespondError(w, err)
				return
			}
			if unmet := missing(granted); len(unmet) > 0 {
				m.log().Warn("permission denied",
					slog.String("actor", actor.ID.String()),
					slog.String("path", r.URL.Path),
					slog.Any("missing", unmet))
				shared.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func dedupe(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
