package users

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bugtrack/bugtrack/internal/rbac"
	"github.com/bugtrack/bugtrack/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

// PermissionResolver resolves the actor's effective permissions.
type PermissionResolver interface {
	EffectiveForPrincipal(ctx context.Context, p shared.Principal) (rbac.Permissions, error)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	resolver PermissionResolver
	audit    shared.AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, resolver PermissionResolver, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		audit:    audit,
		logger:   logger,
		validate: validator.New(),
	}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user by ID.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateMe applies a self-service profile update. Non-role fields are
// authorized unconditionally. A payload touching roles is rejected with
// Forbidden before anything else, regardless of the actor's permissions:
// even canAssignRoles holders cannot change their own role through here.
func (s *Service) UpdateMe(ctx context.Context, actor shared.Principal, update ProfileUpdate) (User, error) {
	if update.RoleChange || update.RoleCodes != nil {
		s.logger.Warn("self-service role change rejected", slog.String("actor", actor.ID.String()))
		return User{}, shared.ErrForbidden
	}
	target, err := s.repo.GetUser(ctx, actor.ID)
	if err != nil {
		return User{}, err
	}
	if err := s.validateUpdate(update); err != nil {
		return User{}, err
	}
	return s.apply(ctx, actor, target, update)
}

// UpdateUser applies an admin update to the target user. Requires the blanket
// user-edit grant; role changes additionally require canAssignRoles.
func (s *Service) UpdateUser(ctx context.Context, actor shared.Principal, targetID uuid.UUID, update ProfileUpdate) (User, error) {
	target, err := s.repo.GetUser(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	perms, err := s.resolver.EffectiveForPrincipal(ctx, actor)
	if err != nil {
		return User{}, err
	}
	if !perms.HasAny(rbac.PermEditAnyUser, rbac.PermAssignRoles) {
		s.logger.Warn("user edit denied",
			slog.String("actor", actor.ID.String()),
			slog.String("target", targetID.String()))
		return User{}, shared.ErrForbidden
	}
	if update.RoleCodes != nil && !perms.Has(rbac.PermAssignRoles) {
		s.logger.Warn("role assignment denied", slog.String("actor", actor.ID.String()))
		return User{}, shared.ErrForbidden
	}
	if err := s.validateUpdate(update); err != nil {
		return User{}, err
	}
	return s.apply(ctx, actor, target, update)
}

func (s *Service) apply(ctx context.Context, actor shared.Principal, target User, update ProfileUpdate) (User, error) {
	changes := map[string]any{}
	if update.FullName != nil {
		target.FullName = strings.TrimSpace(*update.FullName)
		changes["fullName"] = target.FullName
	}
	if update.Email != nil {
		target.Email = strings.ToLower(strings.TrimSpace(*update.Email))
		changes["email"] = target.Email
	}
	if update.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		target.PasswordHash = string(hash)
		changes["password"] = "(changed)"
	}
	if update.RoleCodes != nil {
		target.RoleCodes = normalizeRoleCodes(*update.RoleCodes)
		changes["roleCodes"] = target.RoleCodes
	}
	if len(changes) == 0 {
		return target, nil
	}
	updated, err := s.repo.UpdateUser(ctx, target)
	if err != nil {
		return User{}, err
	}
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditEntry{
		Entity:     "user",
		EntityID:   updated.ID.String(),
		Op:         shared.AuditOpUpdate,
		Changes:    changes,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
	})
	return updated, nil
}

func (s *Service) validateUpdate(update ProfileUpdate) error {
	if err := s.validate.Struct(update); err != nil {
		fields := shared.ValidationErrors{}
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = "invalid value"
			}
		}
		return shared.NewFieldError(fields)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func normalizeRoleCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
