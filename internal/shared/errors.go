package shared

import "errors"

var (
	// ErrNotFound indicates resource not found or a malformed resource id.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates the request carries no actor.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the actor lacks the required grant.
	ErrForbidden = errors.New("forbidden")
	// ErrStoreUnavailable indicates the role or resource store is unreachable.
	// Callers must treat it as a denial, never as an implicit grant.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrValidation indicates the request payload failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict indicates the resource changed between read and write.
	ErrConflict = errors.New("conflict")
)
