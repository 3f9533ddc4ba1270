package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugtrack/bugtrack/internal/shared"
)

type stubRoleStore struct {
	roles []Role
	err   error
	calls int
}

func (s *stubRoleStore) FindByCodes(ctx context.Context, codes []string) ([]Role, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []Role
	for _, role := range s.roles {
		for _, code := range codes {
			if role.Code == code {
				out = append(out, role)
			}
		}
	}
	return out, nil
}

func TestEffectiveMergesWithOr(t *testing.T) {
	store := &stubRoleStore{roles: []Role{
		{Code: "DEV", Permissions: map[string]bool{
			PermViewData:    true,
			PermEditMyBug:   true,
			PermAddComments: true,
			PermCloseAnyBug: false,
			PermAddTestCase: false,
			PermCreateBug:   false,
		}},
		{Code: "QA", Permissions: map[string]bool{
			PermViewData:    true,
			PermCreateBug:   true,
			PermAddTestCase: true,
			PermEditMyBug:   false,
		}},
	}}
	resolver := NewResolver(store, nil)

	perms, err := resolver.Effective(context.Background(), []string{"DEV", "QA"})
	require.NoError(t, err)

	// A flag granted by either role is granted; an explicit false in one role
	// never revokes a grant from the other.
	require.True(t, perms.Has(PermEditMyBug))
	require.True(t, perms.Has(PermAddTestCase))
	require.True(t, perms.Has(PermCreateBug))
	require.True(t, perms.Has(PermViewData))
	require.False(t, perms.Has(PermCloseAnyBug))
	require.False(t, perms.Has("canDoAnythingElse"))
}

func TestEffectiveEmptyCodesSkipsStore(t *testing.T) {
	store := &stubRoleStore{}
	resolver := NewResolver(store, nil)

	perms, err := resolver.Effective(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, perms)
	require.Zero(t, store.calls)
}

func TestEffectiveUnknownCodesYieldEmptySet(t *testing.T) {
	store := &stubRoleStore{roles: []Role{{Code: "DEV", Permissions: map[string]bool{PermViewData: true}}}}
	resolver := NewResolver(store, nil)

	perms, err := resolver.Effective(context.Background(), []string{"NOPE"})
	require.NoError(t, err)
	require.False(t, perms.Has(PermViewData))
	require.Equal(t, 1, store.calls)
}

func TestEffectiveStoreFailureFailsClosed(t *testing.T) {
	store := &stubRoleStore{err: errors.New("connection refused")}
	resolver := NewResolver(store, nil)

	_, err := resolver.Effective(context.Background(), []string{"DEV"})
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestEffectiveMemoizedPerRequest(t *testing.T) {
	store := &stubRoleStore{roles: []Role{{Code: "DEV", Permissions: map[string]bool{PermViewData: true}}}}
	resolver := NewResolver(store, nil)
	ctx := ContextWithMemo(context.Background())

	for i := 0; i < 5; i++ {
		perms, err := resolver.Effective(ctx, []string{"DEV"})
		require.NoError(t, err)
		require.True(t, perms.Has(PermViewData))
	}
	require.Equal(t, 1, store.calls)

	// A fresh request context resolves again.
	_, err := resolver.Effective(ContextWithMemo(context.Background()), []string{"DEV"})
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}

func TestEffectiveMemoizesFailures(t *testing.T) {
	store := &stubRoleStore{err: errors.New("down")}
	resolver := NewResolver(store, nil)
	ctx := ContextWithMemo(context.Background())

	_, err := resolver.Effective(ctx, []string{"DEV"})
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
	_, err = resolver.Effective(ctx, []string{"DEV"})
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
	require.Equal(t, 1, store.calls)
}

func TestEffectiveForPrincipal(t *testing.T) {
	store := &stubRoleStore{roles: []Role{{Code: "PM", Permissions: map[string]bool{PermCloseAnyBug: true}}}}
	resolver := NewResolver(store, nil)

	perms, err := resolver.EffectiveForPrincipal(context.Background(), shared.Principal{RoleCodes: []string{"PM"}})
	require.NoError(t, err)
	require.True(t, perms.Has(PermCloseAnyBug))
}
