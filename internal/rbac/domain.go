package rbac

import "time"

// Permission names recognised by the seeded roles. Role documents may carry
// additional keys; the resolver treats any key as an opaque flag.
const (
	PermViewData = "canViewData"

	PermCreateBug            = "canCreateBug"
	PermEditAnyBug           = "canEditAnyBug"
	PermEditMyBug            = "canEditMyBug"
	PermEditIfAssignedTo     = "canEditIfAssignedTo"
	PermClassifyAnyBug       = "canClassifyAnyBug"
	PermClassifyIfAssignedTo = "canClassifyIfAssignedTo"
	PermReassignAnyBug       = "canReassignAnyBug"
	PermReassignIfAssignedTo = "canReassignIfAssignedTo"
	PermCloseAnyBug          = "canCloseAnyBug"
	PermAddComments          = "canAddComments"
	PermAddTestCase          = "canAddTestCase"

	PermEditAnyUser = "canEditAnyUser"
	PermAssignRoles = "canAssignRoles"
	PermEditAnyRole = "canEditAnyRole"
	PermViewAudit   = "canViewAudit"
)

// Role is a named bundle of boolean permission flags. Roles are read-mostly
// reference data; codes are unique.
type Role struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Permissions map[string]bool `json:"permissions"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Permissions is the OR-merged effective permission set for an actor.
// Absent keys are false.
type Permissions map[string]bool

// Has reports whether the named permission is granted.
func (p Permissions) Has(name string) bool {
	return p[name]
}

// HasAll reports whether every named permission is granted.
func (p Permissions) HasAll(names ...string) bool {
	for _, n := range names {
		if !p[n] {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one named permission is granted.
func (p Permissions) HasAny(names ...string) bool {
	for _, n := range names {
		if p[n] {
			return true
		}
	}
	return false
}

// Missing returns the named permissions that are not granted, for diagnostics.
func (p Permissions) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !p[n] {
			missing = append(missing, n)
		}
	}
	return missing
}

// merge ORs the role's true flags into the set. Never AND: a permission held
// through any one role is held outright.
func (p Permissions) merge(role Role) {
	for name, granted := range role.Permissions {
		if granted {
			p[name] = true
		}
	}
}
