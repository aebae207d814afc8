package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrInvalidInput: http.StatusBadRequest,
		ErrConflict:     http.StatusConflict,
		ErrUnauthorized: http.StatusUnauthorized,
		ErrNotFound:     http.StatusNotFound,
		ErrTooLarge:     http.StatusRequestEntityTooLarge,
		ErrUploadFailed: http.StatusBadGateway,
		ErrUnavailable:  http.StatusServiceUnavailable,
		ErrInternal:     http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, Status(code), code)
	}
}

func TestRespondError_AppErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/x/submit", nil)

	RespondError(rec, req, New(ErrInvalidInput, "Nothing to upload", nil).WithDetails([]string{"Please select a region."}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_INPUT", body["error_code"])
	assert.Equal(t, "Nothing to upload", body["message"])
	assert.Equal(t, []any{"Please select a region."}, body["details"])
}

func TestRespondError_WrappedAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	err := fmt.Errorf("handler: %w", New(ErrNotFound, "Session not found", nil))
	RespondError(rec, req, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondError_PlainErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(rec, req, fmt.Errorf("dial tcp: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.NotContains(t, rec.Body.String(), "details")
}
