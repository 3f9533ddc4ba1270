package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bugtrack/bugtrack/internal/shared"
)

// RoleStore loads role documents by code. Lookups also match a role's legacy
// display name so claims written before codes existed keep resolving.
type RoleStore interface {
	FindByCodes(ctx context.Context, codes []string) ([]Role, error)
}

// Resolver computes the effective permission set for an actor's role codes.
type Resolver struct {
	store  RoleStore
	logger *slog.Logger
}

// NewResolver constructs a Resolver backed by the given store.
func NewResolver(store RoleStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// memo caches one resolution per request context. All authorization checks
// within a request see the same permission set and the store is queried at
// most once.
type memo struct {
	mu       sync.Mutex
	resolved bool
	perms    Permissions
	err      error
}

type memoContextKey struct{}

// ContextWithMemo attaches a fresh per-request resolution cache.
func ContextWithMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoContextKey{}, &memo{})
}

func memoFromContext(ctx context.Context) *memo {
	m, _ := ctx.Value(memoContextKey{}).(*memo)
	return m
}

// Effective resolves the OR-merged permission set for the given role codes.
// Zero codes short-circuit to the empty set without touching the store.
// Store failures wrap shared.ErrStoreUnavailable so callers fail closed.
func (r *Resolver) Effective(ctx context.Context, codes []string) (Permissions, error) {
	m := memoFromContext(ctx)
	if m == nil {
		return r.resolve(ctx, codes)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolved {
		return m.perms, m.err
	}
	m.perms, m.err = r.resolve(ctx, codes)
	m.resolved = true
	return m.perms, m.err
}

func (r *Resolver) resolve(ctx context.Context, codes []string) (Permissions, error) {
	perms := Permissions{}
	if len(codes) == 0 {
		return perms, nil
	}
	roles, err := r.store.FindByCodes(ctx, codes)
	if err != nil {
		r.logger.Error("resolve roles", slog.Any("codes", codes), slog.Any("error", err))
		return nil, fmt.Errorf("rbac: load roles: %w", shared.ErrStoreUnavailable)
	}
	for _, role := range roles {
		perms.merge(role)
	}
	return perms, nil
}

// EffectiveForPrincipal resolves permissions for the request actor.
func (r *Resolver) EffectiveForPrincipal(ctx context.Context, p shared.Principal) (Permissions, error) {
	return r.Effective(ctx, p.RoleCodes)
}
