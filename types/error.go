package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Configuration-time error codes. These propagate to callers as failures.
const (
	ErrInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrNoActiveSession      ErrorCode = "NO_ACTIVE_SESSION"
	ErrSessionActive        ErrorCode = "SESSION_ACTIVE"
	ErrAgentNotFound        ErrorCode = "AGENT_NOT_FOUND"
)

// In-loop error codes. These are contained by the orchestrator and surfaced
// back into the model's context or recorded on the message, never raised to
// the admin caller.
const (
	ErrToolNotAllowed        ErrorCode = "TOOL_NOT_ALLOWED"
	ErrMalformedToolArgs     ErrorCode = "MALFORMED_TOOL_ARGUMENTS"
	ErrProviderFailure       ErrorCode = "PROVIDER_FAILURE"
	ErrEmbeddingFailure      ErrorCode = "EMBEDDING_FAILURE"
	ErrSynthesisFailure      ErrorCode = "SYNTHESIS_FAILURE"
)

// Transport-level error codes used by the HTTP layer.
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrForbidden      ErrorCode = "FORBIDDEN"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
