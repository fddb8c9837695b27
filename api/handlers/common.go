// Package handlers implements the HTTP admin API: session control, agent
// CRUD, audio artifact serving, and the live conversation feed.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/types"
)

// Response is the uniform API response envelope.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorInfo is the serialized error payload.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes an error envelope. Plain errors become internal errors;
// structured ones keep their code and mapped status.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var apiErr *types.Error
	if !errors.As(err, &apiErr) {
		apiErr = types.NewError(types.ErrInternalError, "internal error").WithCause(err)
	}

	status := apiErr.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(apiErr.Code)
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("code", string(apiErr.Code)),
			zap.String("message", apiErr.Message),
			zap.Int("status", status),
			zap.Error(apiErr.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(apiErr.Code),
			Message:   apiErr.Message,
			Retryable: apiErr.Retryable,
		},
		Timestamp: time.Now(),
	})
}

// WriteErrorMessage writes a one-off error with an explicit status.
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest, types.ErrInvalidConfiguration, types.ErrMalformedToolArgs:
		return http.StatusBadRequest
	case types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrForbidden, types.ErrToolNotAllowed:
		return http.StatusForbidden
	case types.ErrNotFound, types.ErrAgentNotFound:
		return http.StatusNotFound
	case types.ErrNoActiveSession, types.ErrSessionActive:
		return http.StatusConflict
	case types.ErrProviderFailure, types.ErrEmbeddingFailure, types.ErrSynthesisFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes a strict JSON request body into dst. On failure the
// error response has already been written.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code for
// request logging and metrics.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader records the first status code written.
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer so http.ResponseController can reach
// Flusher and Hijacker, which the websocket upgrade needs.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
