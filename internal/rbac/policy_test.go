package rbac

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bugtrack/bugtrack/internal/shared"
)

func TestPolicyAllows(t *testing.T) {
	author := shared.Principal{ID: uuid.New(), Email: "dev@bugtrack.local"}
	assignee := shared.Principal{ID: uuid.New(), Email: "qa@bugtrack.local"}
	bystander := shared.Principal{ID: uuid.New(), Email: "other@bugtrack.local"}

	rel := Relation{
		AuthorID:    author.ID,
		AuthorEmail: author.Email,
		AssigneeID:  &assignee.ID,
	}

	cases := []struct {
		name  string
		perms Permissions
		actor shared.Principal
		want  bool
	}{
		{"blanket allows anyone", Permissions{PermEditAnyBug: true}, bystander, true},
		{"owner scope allows author", Permissions{PermEditMyBug: true}, author, true},
		{"owner scope denies non-author", Permissions{PermEditMyBug: true}, bystander, false},
		{"owner scope denies assignee", Permissions{PermEditMyBug: true}, assignee, false},
		{"assigned scope allows assignee", Permissions{PermEditIfAssignedTo: true}, assignee, true},
		{"assigned scope denies author", Permissions{PermEditIfAssignedTo: true}, author, false},
		{"no permissions denies author", Permissions{}, author, false},
		{"relationship without scope denies", Permissions{PermViewData: true}, assignee, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, PolicyEditBug.Allows(tc.perms, tc.actor, rel))
		})
	}
}

func TestPolicyUnassignedBug(t *testing.T) {
	author := shared.Principal{ID: uuid.New(), Email: "dev@bugtrack.local"}
	rel := Relation{AuthorID: author.ID, AuthorEmail: author.Email}

	// With no assignee, only the blanket or owner paths can allow.
	require.False(t, PolicyEditBug.Allows(Permissions{PermEditIfAssignedTo: true}, author, rel))
	require.True(t, PolicyEditBug.Allows(Permissions{PermEditMyBug: true}, author, rel))
}

func TestPolicyClassifyHasNoOwnerPath(t *testing.T) {
	author := shared.Principal{ID: uuid.New(), Email: "dev@bugtrack.local"}
	rel := Relation{AuthorID: author.ID, AuthorEmail: author.Email}

	// Authoring a bug grants no say over its classification.
	require.False(t, PolicyClassifyBug.Allows(Permissions{PermEditMyBug: true}, author, rel))
	require.True(t, PolicyClassifyBug.Allows(Permissions{PermClassifyAnyBug: true}, author, rel))
}

func TestPolicyCloseIsBlanketOnly(t *testing.T) {
	actor := shared.Principal{ID: uuid.New(), Email: "dev@bugtrack.local"}
	rel := Relation{AuthorID: actor.ID, AuthorEmail: actor.Email, AssigneeID: &actor.ID}

	perms := Permissions{
		PermEditMyBug:        true,
		PermEditIfAssignedTo: true,
	}
	require.False(t, PolicyCloseBug.Allows(perms, actor, rel))
	require.True(t, PolicyCloseBug.Allows(Permissions{PermCloseAnyBug: true}, actor, rel))
}

func TestAssigneeMatchesByID(t *testing.T) {
	assignee := shared.Principal{ID: uuid.New(), Email: "qa@bugtrack.local"}
	other := uuid.New()

	// Stored display name agreeing with the actor's email is not enough when
	// the id does not match.
	rel := Relation{AssigneeID: &other, AssigneeName: assignee.Email}
	require.False(t, PolicyAssignBug.Allows(Permissions{PermReassignIfAssignedTo: true}, assignee, rel))

	rel.AssigneeID = &assignee.ID
	require.True(t, PolicyAssignBug.Allows(Permissions{PermReassignIfAssignedTo: true}, assignee, rel))
}

func TestLegacyNameMatchFallback(t *testing.T) {
	actor := shared.Principal{ID: uuid.New(), Email: "qa@bugtrack.local"}
	// Row written before assignee ids were recorded.
	rel := Relation{AssigneeName: "QA@Bugtrack.Local"}
	perms := Permissions{PermEditIfAssignedTo: true}

	require.False(t, PolicyEditBug.Allows(perms, actor, rel))
	require.True(t, PolicyEditBug.WithLegacyNameMatch(true).Allows(perms, actor, rel))

	// With the fallback enabled the stored name still matches even when a
	// different id is recorded; that is why it stays off by default.
	other := uuid.New()
	rel.AssigneeID = &other
	require.True(t, PolicyEditBug.WithLegacyNameMatch(true).Allows(perms, actor, rel))
	require.False(t, PolicyEditBug.Allows(perms, actor, rel))
}

func TestAuthorEmailFallbackOnlyWithoutID(t *testing.T) {
	actor := shared.Principal{ID: uuid.New(), Email: "dev@bugtrack.local"}
	perms := Permissions{PermEditMyBug: true}

	// Legacy row: no author id recorded, email matches case-insensitively.
	rel := Relation{AuthorEmail: "DEV@bugtrack.local"}
	require.True(t, PolicyEditBug.Allows(perms, actor, rel))

	// A recorded id that differs wins over a matching email.
	rel.AuthorID = uuid.New()
	require.False(t, PolicyEditBug.Allows(perms, actor, rel))
}
