package roles

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bugtrack/bugtrack/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, code string) (Role, error)
	UpsertRole(ctx context.Context, role Role) (Role, error)
}

// Invalidator drops derived role caches after an admin edit.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Service handles role administration logic.
type Service struct {
	repo  RepositoryPort
	cache Invalidator
	title cases.Caser
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache Invalidator) *Service {
	return &Service{repo: repo, cache: cache, title: cases.Title(language.English)}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches one role by code.
func (s *Service) GetRole(ctx context.Context, code string) (Role, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Role{}, shared.ErrNotFound
	}
	return s.repo.GetRole(ctx, code)
}

// UpsertRole creates or replaces a role document. Codes are upper-cased and
// display names title-cased so seeded and admin-entered roles stay uniform.
func (s *Service) UpsertRole(ctx context.Context, role Role) (Role, error) {
	role.Code = strings.ToUpper(strings.TrimSpace(role.Code))
	if role.Code == "" {
		return Role{}, shared.NewFieldError(shared.ValidationErrors{"code": "required"})
	}
	role.Name = s.title.String(strings.TrimSpace(role.Name))
	if role.Name == "" {
		role.Name = role.Code
	}
	if role.Permissions == nil {
		role.Permissions = map[string]bool{}
	}
	// False flags are equivalent to absent keys; store the sparse form.
	for name, granted := range role.Permissions {
		if !granted {
			delete(role.Permissions, name)
		}
	}
	saved, err := s.repo.UpsertRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return saved, nil
}
