package roles

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugtrack/bugtrack/internal/shared"
)

type memoryRepo struct {
	roles map[string]Role
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{roles: make(map[string]Role)}
}

func (r *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRepo) GetRole(ctx context.Context, code string) (Role, error) {
	role, ok := r.roles[code]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r *memoryRepo) UpsertRole(ctx context.Context, role Role) (Role, error) {
	r.roles[role.Code] = role
	return role, nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) { c.calls++ }

func TestUpsertRoleNormalizes(t *testing.T) {
	repo := newMemoryRepo()
	inval := &countingInvalidator{}
	svc := NewService(repo, inval)

	saved, err := svc.UpsertRole(context.Background(), Role{
		Code: " dev ",
		Name: "senior developer",
		Permissions: map[string]bool{
			"canViewData":    true,
			"canEditMyBug":   true,
			"canCloseAnyBug": false,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "DEV", saved.Code)
	require.Equal(t, "Senior Developer", saved.Name)
	// Explicit false flags are stored sparsely.
	require.NotContains(t, saved.Permissions, "canCloseAnyBug")
	require.True(t, saved.Permissions["canViewData"])
	require.Equal(t, 1, inval.calls)
}

func TestUpsertRoleRequiresCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	_, err := svc.UpsertRole(context.Background(), Role{Name: "Nameless"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpsertRoleDefaultsNameToCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	saved, err := svc.UpsertRole(context.Background(), Role{Code: "qa"})
	require.NoError(t, err)
	require.Equal(t, "QA", saved.Name)
	require.NotNil(t, saved.Permissions)
}

func TestGetRoleNormalizesCode(t *testing.T) {
	repo := newMemoryRepo()
	repo.roles["DEV"] = Role{Code: "DEV", Name: "Developer"}
	svc := NewService(repo, nil)

	role, err := svc.GetRole(context.Background(), " dev ")
	require.NoError(t, err)
	require.Equal(t, "DEV", role.Code)

	_, err = svc.GetRole(context.Background(), strings.Repeat(" ", 3))
	require.ErrorIs(t, err, shared.ErrNotFound)
}
