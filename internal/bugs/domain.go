package bugs

import (
	"time"

	"github.com/google/uuid"

	"github.com/bugtrack/bugtrack/internal/rbac"
)

// Bug classifications.
const (
	ClassificationUnclassified = "unclassified"
	ClassificationApproved     = "approved"
	ClassificationUnapproved   = "unapproved"
	ClassificationDuplicate    = "duplicate"
)

// Test case outcomes.
const (
	TestStatusUntested = "untested"
	TestStatusPassed   = "passed"
	TestStatusFailed   = "failed"
)

// Bug is a tracked defect report.
type Bug struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	StepsToReproduce string     `json:"stepsToReproduce"`
	Classification   string     `json:"classification"`
	AuthorID         uuid.UUID  `json:"authorId"`
	AuthorEmail      string     `json:"authorEmail"`
	AssignedToID     *uuid.UUID `json:"assignedToId"`
	AssignedToName   *string    `json:"assignedToName"`
	Closed           bool       `json:"closed"`
	ClosedOn         *time.Time `json:"closedOn"`
	ClosedBy         *string    `json:"closedBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Relation extracts the relationship facts the authorization policies need.
func (b Bug) Relation() rbac.Relation {
	rel := rbac.Relation{
		AuthorID:    b.AuthorID,
		AuthorEmail: b.AuthorEmail,
		AssigneeID:  b.AssignedToID,
	}
	if b.AssignedToName != nil {
		rel.AssigneeName = *b.AssignedToName
	}
	return rel
}

// Comment is a discussion entry attached to a bug.
type Comment struct {
	ID          uuid.UUID `json:"id"`
	BugID       uuid.UUID `json:"bugId"`
	AuthorID    uuid.UUID `json:"authorId"`
	AuthorEmail string    `json:"authorEmail"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TestCase is a QA verification record attached to a bug.
type TestCase struct {
	ID          uuid.UUID `json:"id"`
	BugID       uuid.UUID `json:"bugId"`
	AuthorID    uuid.UUID `json:"authorId"`
	AuthorEmail string    `json:"authorEmail"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListFilters narrows bug listings.
type ListFilters struct {
	Classification string
	Closed         *bool
	AssignedToID   *uuid.UUID
	AuthorID       *uuid.UUID
	Search         string
}
