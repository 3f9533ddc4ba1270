package rbac

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bugtrack/bugtrack/internal/shared"
)

// Relation carries the relationship facts of a target resource. The resource
// loader supplies them; this package never reads the resource store itself.
type Relation struct {
	AuthorID    uuid.UUID
	AuthorEmail string
	AssigneeID  *uuid.UUID
	// AssigneeName is the stored assignee display name. It only participates
	// in matching when the deprecated legacy name fallback is enabled.
	AssigneeName string
}

// Policy is the per-action authorization rule for mutations on a specific
// resource instance. An action is allowed when the actor holds the blanket
// permission, or a scope permission together with the matching relationship.
type Policy struct {
	// Blanket grants the action on any resource instance.
	Blanket string
	// AssignedScope grants the action when the actor is the current assignee.
	AssignedScope string
	// OwnerScope grants the action when the actor authored the resource.
	OwnerScope string
	// LegacyNameMatch additionally matches the stored assignee display name
	// against the actor's email. Deprecated: assignment is matched by id;
	// this fallback exists only for rows written before assignee ids were
	// recorded and is off by default.
	LegacyNameMatch bool
}

// Predefined policies for the bug and user mutation endpoints.
var (
	PolicyEditBug = Policy{
		Blanket:       PermEditAnyBug,
		AssignedScope: PermEditIfAssignedTo,
		OwnerScope:    PermEditMyBug,
	}
	PolicyClassifyBug = Policy{
		Blanket:       PermClassifyAnyBug,
		AssignedScope: PermClassifyIfAssignedTo,
	}
	PolicyAssignBug = Policy{
		Blanket:       PermReassignAnyBug,
		AssignedScope: PermReassignIfAssignedTo,
	}
	PolicyCloseBug = Policy{
		Blanket: PermCloseAnyBug,
	}
	PolicyEditUser = Policy{
		Blanket: PermEditAnyUser,
	}
)

// WithLegacyNameMatch returns a copy of the policy with the deprecated
// assignee name fallback enabled.
func (p Policy) WithLegacyNameMatch(enabled bool) Policy {
	p.LegacyNameMatch = enabled
	return p
}

// Allows evaluates the rule against the actor's effective permissions and the
// resource relationship facts.
func (p Policy) Allows(perms Permissions, actor shared.Principal, rel Relation) bool {
	if p.Blanket != "" && perms.Has(p.Blanket) {
		return true
	}
	if p.AssignedScope != "" && perms.Has(p.AssignedScope) && p.actorIsAssignee(actor, rel) {
		return true
	}
	if p.OwnerScope != "" && perms.Has(p.OwnerScope) && actorIsAuthor(actor, rel) {
		return true
	}
	return false
}

func (p Policy) actorIsAssignee(actor shared.Principal, rel Relation) bool {
	if rel.AssigneeID != nil && *rel.AssigneeID == actor.ID {
		return true
	}
	if p.LegacyNameMatch && rel.AssigneeName != "" &&
		strings.EqualFold(rel.AssigneeName, actor.Email) {
		return true
	}
	return false
}

func actorIsAuthor(actor shared.Principal, rel Relation) bool {
	if rel.AuthorID != uuid.Nil && rel.AuthorID == actor.ID {
		return true
	}
	// Rows written before author ids were recorded carry only the email.
	return rel.AuthorID == uuid.Nil && rel.AuthorEmail != "" &&
		strings.EqualFold(rel.AuthorEmail, actor.Email)
}
