package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated user account.
type User struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	RoleCodes    []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
