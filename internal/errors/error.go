package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"uploader/internal/json"
)

// ErrorCode enum for machine-readable errors
type ErrorCode string

const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConflict     ErrorCode = "CONFLICT" // e.g. session changed concurrently
	ErrInternal     ErrorCode = "INTERNAL"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrTooLarge     ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrUploadFailed ErrorCode = "UPLOAD_FAILED" // storage backend rejected every file
	ErrUnavailable  ErrorCode = "UNAVAILABLE"
)

// AppError carries the "User View" and the "System View"
type AppError struct {
	Code     ErrorCode // Machine code (for frontend logic)
	Message  string    // Safe user-facing message
	Details  any       // Optional structured payload, e.g. validation toasts
	Internal error     // Original error - NEVER show to user
	Stack    string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithDetails attaches a payload that is sent to the client as "details".
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New factory to capture stack trace automatically
func New(code ErrorCode, msg string, internal error) *AppError {
	return &AppError{
		Code:     code,
		Message:  msg,
		Internal: internal,
		Stack:    string(debug.Stack()),
	}
}

// Status maps an error code to its HTTP status.
func Status(code ErrorCode) int {
	switch code {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrUploadFailed:
		return http.StatusBadGateway
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Details   any       `json:"details,omitempty"`
}

func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		// A generic Go error (e.g. from a library) is wrapped as Internal
		appErr = New(ErrInternal, "Unexpected system error", err)
	}

	status := Status(appErr.Code)

	logFields := []any{
		"req_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"code", appErr.Code,
		"user_msg", appErr.Message,
	}

	if status >= http.StatusInternalServerError {
		logFields = append(logFields, "internal_err", appErr.Internal, "stack", appErr.Stack)
		slog.ErrorContext(ctx, "Internal Server Error", logFields...)
	} else {
		if appErr.Internal != nil {
			logFields = append(logFields, "internal_details", appErr.Internal)
		}
		slog.WarnContext(ctx, "Request Failed", logFields...)
	}

	if err := json.Write(w, status, errorBody{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: reqID,
		Details:   appErr.Details,
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to write error response", "error", err)
	}
}
