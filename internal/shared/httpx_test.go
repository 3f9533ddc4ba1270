package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{ErrInvalidCredentials, http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, "error %v", tc.err)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorFieldDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, NewFieldError(ValidationErrors{"email": "already in use"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "validation failed", body.Error)
	require.Equal(t, "already in use", body.Fields["email"])
}

// Denials never leak which permission was missing.
func TestRespondErrorForbiddenBodyIsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, ErrForbidden)
	require.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}
