package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_WrapsKind(t *testing.T) {
	err := fmt.Errorf("context: %w", NotFound("task %s not found", "abc"))

	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrForbidden)
	require.Equal(t, "task abc not found", Message(err, "fallback"))
}

func TestMessage_FallbackForPlainErrors(t *testing.T) {
	require.Equal(t, "fallback", Message(errors.New("pq: connection refused"), "fallback"))
}

func TestWriteServiceError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{InvalidInput("bad"), http.StatusBadRequest, "bad_request"},
		{NotFound("gone"), http.StatusNotFound, "not_found"},
		{Forbidden("no"), http.StatusForbidden, "forbidden"},
		{Conflict("dup"), http.StatusConflict, "conflict"},
		{errors.New("driver exploded"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteServiceError(w, r, tc.err, "Something failed")
		})).ServeHTTP(rec, req)

		require.Equal(t, tc.status, rec.Code)

		var env ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		require.Equal(t, tc.code, env.Error.Code)
		require.NotEmpty(t, env.Error.RequestID)
		if tc.status == http.StatusInternalServerError {
			require.Equal(t, "Something failed", env.Error.Message)
		}
	}
}
