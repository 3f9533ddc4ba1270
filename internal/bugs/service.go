package bugs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bugtrack/bugtrack/internal/rbac"
	"github.com/bugtrack/bugtrack/internal/shared"
)

// RepositoryPort defines data access methods for bugs.
type RepositoryPort interface {
	GetBug(ctx context.Context, id uuid.UUID) (Bug, error)
	ListBugs(ctx context.Context, filters ListFilters, limit, offset int) ([]Bug, int, error)
	InsertBug(ctx context.Context, bug Bug) (Bug, error)
	UpdateBug(ctx context.Context, bug Bug, expectedUpdatedAt time.Time) (Bug, error)
	InsertComment(ctx context.Context, comment Comment) (Comment, error)
	ListComments(ctx context.Context, bugID uuid.UUID) ([]Comment, error)
	InsertTestCase(ctx context.Context, tc TestCase) (TestCase, error)
	ListTestCases(ctx context.Context, bugID uuid.UUID) ([]TestCase, error)
}

// PermissionResolver resolves the actor's effective permissions.
type PermissionResolver interface {
	EffectiveForPrincipal(ctx context.Context, p shared.Principal) (rbac.Permissions, error)
}

// AssigneeDirectory looks up the user a bug is being assigned to.
type AssigneeDirectory interface {
	LookupAssignee(ctx context.Context, id uuid.UUID) (name string, err error)
}

// ServiceConfig tunes policy behaviour.
type ServiceConfig struct {
	// LegacyAssigneeNameMatch re-enables the deprecated display-name-vs-email
	// assignee comparison. Off by default; assignment matches by id.
	LegacyAssigneeNameMatch bool
}

// Service handles bug business logic. Every mutation follows the same order:
// load the resource (unknown id is 404, before any role lookup), authorize
// against the loaded record, validate the payload, write, audit.
type Service struct {
	repo      RepositoryPort
	resolver  PermissionResolver
	directory AssigneeDirectory
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validate  *validator.Validate
	cfg       ServiceConfig
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, resolver PermissionResolver, directory AssigneeDirectory,
	audit shared.AuditRecorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		directory: directory,
		audit:     audit,
		logger:    logger,
		validate:  validator.New(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// ListBugs returns bugs matching the filters.
func (s *Service) ListBugs(ctx context.Context, filters ListFilters, limit, offset int) ([]Bug, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListBugs(ctx, filters, limit, offset)
}

// GetBug returns one bug by ID.
func (s *Service) GetBug(ctx context.Context, id uuid.UUID) (Bug, error) {
	return s.repo.GetBug(ctx, id)
}

// CreateBug records a new bug authored by the actor.
func (s *Service) CreateBug(ctx context.Context, actor shared.Principal, req CreateBugRequest) (Bug, error) {
	if err := s.validateStruct(req); err != nil {
		return Bug{}, err
	}
	bug := Bug{
		ID:               uuid.New(),
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		StepsToReproduce: req.StepsToReproduce,
		Classification:   ClassificationUnclassified,
		AuthorID:         actor.ID,
		AuthorEmail:      actor.Email,
	}
	created, err := s.repo.InsertBug(ctx, bug)
	if err != nil {
		return Bug{}, err
	}
	s.recordAudit(ctx, actor, created.ID, shared.AuditOpInsert, map[string]any{
		"title":          created.Title,
		"classification": created.Classification,
	})
	return created, nil
}

// EditBug updates the descriptive fields of a bug. Allowed for holders of the
// blanket edit grant, the current assignee with the assigned-scope grant, or
// the original reporter with the owner-scope grant.
func (s *Service) EditBug(ctx context.Context, actor shared.Principal, id uuid.UUID, req EditBugRequest) (Bug, error) {
	bug, err := s.authorize(ctx, actor, id, rbac.PolicyEditBug)
	if err != nil {
		return Bug{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return Bug{}, err
	}
	changes := map[string]any{}
	if req.Title != nil {
		bug.Title = strings.TrimSpace(*req.Title)
		changes["title"] = bug.Title
	}
	if req.Description != nil {
		bug.Description = *req.Description
		changes["description"] = bug.Description
	}
	if req.StepsToReproduce != nil {
		bug.StepsToReproduce = *req.StepsToReproduce
		changes["stepsToReproduce"] = bug.StepsToReproduce
	}
	if len(changes) == 0 {
		return bug, nil
	}
	return s.persist(ctx, actor, bug, changes)
}

// ClassifyBug sets the triage classification.
func (s *Service) ClassifyBug(ctx context.Context, actor shared.Principal, id uuid.UUID, req ClassifyBugRequest) (Bug, error) {
	bug, err := s.authorize(ctx, actor, id, rbac.PolicyClassifyBug)
	if err != nil {
		return Bug{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return Bug{}, err
	}
	bug.Classification = req.Classification
	return s.persist(ctx, actor, bug, map[string]any{"classification": bug.Classification})
}

// AssignBug reassigns a bug. The assignee is resolved through the user
// directory so both the canonical id and the display name are stored.
func (s *Service) AssignBug(ctx context.Context, actor shared.Principal, id uuid.UUID, req AssignBugRequest) (Bug, error) {
	bug, err := s.authorize(ctx, actor, id, rbac.PolicyAssignBug)
	if err != nil {
		return Bug{}, err
	}
	changes := map[string]any{}
	if req.AssignedTo == nil {
		bug.AssignedToID = nil
		bug.AssignedToName = nil
		changes["assignedToId"] = nil
	} else {
		name, err := s.directory.LookupAssignee(ctx, *req.AssignedTo)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Bug{}, shared.NewFieldError(shared.ValidationErrors{"assignedTo": "unknown user"})
			}
			return Bug{}, err
		}
		assignee := *req.AssignedTo
		bug.AssignedToID = &assignee
		bug.AssignedToName = &name
		changes["assignedToId"] = assignee.String()
		changes["assignedToName"] = name
	}
	return s.persist(ctx, actor, bug, changes)
}

// SetClosed closes or reopens a bug. Closing stamps closedOn/closedBy;
// reopening clears both, never leaving stale closure metadata behind.
func (s *Service) SetClosed(ctx context.Context, actor shared.Principal, id uuid.UUID, req CloseBugRequest) (Bug, error) {
	bug, err := s.authorize(ctx, actor, id, rbac.PolicyCloseBug)
	if err != nil {
		return Bug{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return Bug{}, err
	}
	changes := map[string]any{"closed": *req.Closed}
	if *req.Closed {
		now := s.now().UTC()
		by := actor.Email
		bug.Closed = true
		bug.ClosedOn = &now
		bug.ClosedBy = &by
		changes["closedOn"] = now
		changes["closedBy"] = by
	} else {
		bug.Closed = false
		bug.ClosedOn = nil
		bug.ClosedBy = nil
		changes["closedOn"] = nil
		changes["closedBy"] = nil
	}
	return s.persist(ctx, actor, bug, changes)
}

// AddComment attaches a discussion entry. Like every other mutation the bug
// is loaded before the comment grant is checked.
func (s *Service) AddComment(ctx context.Context, actor shared.Principal, bugID uuid.UUID, req AddCommentRequest) (Comment, error) {
	if _, err := s.repo.GetBug(ctx, bugID); err != nil {
		return Comment{}, err
	}
	if err := s.requireGrant(ctx, actor, bugID, rbac.PermAddComments); err != nil {
		return Comment{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return Comment{}, err
	}
	comment, err := s.repo.InsertComment(ctx, Comment{
		ID:          uuid.New(),
		BugID:       bugID,
		AuthorID:    actor.ID,
		AuthorEmail: actor.Email,
		Body:        req.Body,
	})
	if err != nil {
		return Comment{}, err
	}
	s.recordAudit(ctx, actor, bugID, shared.AuditOpUpdate, map[string]any{"comment": comment.ID.String()})
	return comment, nil
}

// ListComments returns a bug's comments.
func (s *Service) ListComments(ctx context.Context, bugID uuid.UUID) ([]Comment, error) {
	if _, err := s.repo.GetBug(ctx, bugID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, bugID)
}

// AddTestCase attaches a QA verification record.
func (s *Service) AddTestCase(ctx context.Context, actor shared.Principal, bugID uuid.UUID, req AddTestCaseRequest) (TestCase, error) {
	if _, err := s.repo.GetBug(ctx, bugID); err != nil {
		return TestCase{}, err
	}
	if err := s.requireGrant(ctx, actor, bugID, rbac.PermAddTestCase); err != nil {
		return TestCase{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return TestCase{}, err
	}
	status := req.Status
	if status == "" {
		status = TestStatusUntested
	}
	tc, err := s.repo.InsertTestCase(ctx, TestCase{
		ID:          uuid.New(),
		BugID:       bugID,
		AuthorID:    actor.ID,
		AuthorEmail: actor.Email,
		Title:       req.Title,
		Status:      status,
	})
	if err != nil {
		return TestCase{}, err
	}
	s.recordAudit(ctx, actor, bugID, shared.AuditOpUpdate, map[string]any{"testCase": tc.ID.String()})
	return tc, nil
}

// ListTestCases returns a bug's test cases.
func (s *Service) ListTestCases(ctx context.Context, bugID uuid.UUID) ([]TestCase, error) {
	if _, err := s.repo.GetBug(ctx, bugID); err != nil {
		return nil, err
	}
	return s.repo.ListTestCases(ctx, bugID)
}

// authorize loads the bug and evaluates the policy. The load runs first so an
// unknown id yields NotFound without ever consulting the role store; a role
// store failure is a denial, never a grant.
func (s *Service) authorize(ctx context.Context, actor shared.Principal, id uuid.UUID, policy rbac.Policy) (Bug, error) {
	bug, err := s.repo.GetBug(ctx, id)
	if err != nil {
		return Bug{}, err
	}
	perms, err := s.resolver.EffectiveForPrincipal(ctx, actor)
	if err != nil {
		return Bug{}, err
	}
	policy = policy.WithLegacyNameMatch(s.cfg.LegacyAssigneeNameMatch)
	if !policy.Allows(perms, actor, bug.Relation()) {
		s.logger.Warn("bug mutation denied",
			slog.String("actor", actor.ID.String()),
			slog.String("bug", id.String()),
			slog.String("blanket", policy.Blanket))
		return Bug{}, shared.ErrForbidden
	}
	return bug, nil
}

// requireGrant checks a flat permission after the bug is known to exist.
func (s *Service) requireGrant(ctx context.Context, actor shared.Principal, bugID uuid.UUID, perm string) error {
	perms, err := s.resolver.EffectiveForPrincipal(ctx, actor)
	if err != nil {
		return err
	}
	if !perms.Has(perm) {
		s.logger.Warn("bug mutation denied",
			slog.String("actor", actor.ID.String()),
			slog.String("bug", bugID.String()),
			slog.String("blanket", perm))
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) persist(ctx context.Context, actor shared.Principal, bug Bug, changes map[string]any) (Bug, error) {
	updated, err := s.repo.UpdateBug(ctx, bug, bug.UpdatedAt)
	if err != nil {
		return Bug{}, err
	}
	s.recordAudit(ctx, actor, updated.ID, shared.AuditOpUpdate, changes)
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Principal, bugID uuid.UUID, op string, changes map[string]any) {
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditEntry{
		Entity:     "bug",
		EntityID:   bugID.String(),
		Op:         op,
		Changes:    changes,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
	})
}

func (s *Service) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		fields := shared.ValidationErrors{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[lowerFirst(fe.Field())] = "invalid value"
			}
		}
		return shared.NewFieldError(fields)
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
