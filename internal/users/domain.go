package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a tracker account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	RoleCodes    []string  `json:"roleCodes"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProfileUpdate is a partial update to a user record. Nil fields are left
// untouched. RoleCodes is only honoured on the admin path; RoleChange marks
// that the payload attempted to touch roles at all, which the self-service
// path rejects outright.
type ProfileUpdate struct {
	FullName   *string   `validate:"omitempty,min=1,max=120"`
	Email      *string   `validate:"omitempty,email"`
	Password   *string   `validate:"omitempty,min=8"`
	RoleCodes  *[]string `validate:"-"`
	RoleChange bool      `validate:"-"`
}
