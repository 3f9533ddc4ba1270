package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ValidationErrors maps field names to human-readable messages.
type ValidationErrors map[string]string

type errorBody struct {
	Error  string           `json:"error"`
	Fields ValidationErrors `json:"fields,omitempty"`
}

// RespondJSON writes v as a JSON response with the given status.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// RespondError maps sentinel errors to HTTP status codes with a generic body.
// Authorization failures never reveal which permission was missing; callers
// log the specifics separately.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		RespondJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
	case errors.Is(err, ErrForbidden):
		RespondJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, ErrNotFound):
		RespondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, ErrConflict):
		RespondJSON(w, http.StatusConflict, errorBody{Error: "resource was modified concurrently"})
	case errors.Is(err, ErrStoreUnavailable):
		RespondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "service unavailable"})
	case errors.Is(err, ErrInvalidCredentials):
		RespondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid credentials"})
	case errors.Is(err, ErrValidation):
		var fieldErr *FieldError
		if errors.As(err, &fieldErr) {
			RespondJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fieldErr.Fields})
			return
		}
		RespondJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed"})
	default:
		RespondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// FieldError carries per-field validation messages alongside ErrValidation.
type FieldError struct {
	Fields ValidationErrors
}

// NewFieldError builds a FieldError from field/message pairs.
func NewFieldError(fields ValidationErrors) *FieldError {
	return &FieldError{Fields: fields}
}

func (e *FieldError) Error() string { return ErrValidation.Error() }

// Unwrap lets errors.Is match ErrValidation.
func (e *FieldError) Unwrap() error { return ErrValidation }
