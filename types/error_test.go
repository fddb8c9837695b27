package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorChaining(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewError(ErrProviderFailure, "chat completion failed").
		WithCause(cause).
		WithRetryable(true)

	assert.Equal(t, ErrProviderFailure, GetErrorCode(err))
	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetErrorCodePlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsCode(errors.New("plain"), ErrNoActiveSession))
	assert.True(t, IsCode(NewError(ErrNoActiveSession, "none"), ErrNoActiveSession))
}

func TestToolResultToMessage(t *testing.T) {
	ok := ToolResult{ToolCallID: "call-1", Name: "current_time", Result: []byte(`{"time":"12:00"}`)}
	msg := ok.ToMessage()
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "call-1", msg.ToolCallID)
	assert.False(t, ok.IsError())

	failed := ToolResult{ToolCallID: "call-2", Name: "web_lookup", Error: "tool not allowed for this agent"}
	msg = failed.ToMessage()
	assert.Contains(t, msg.Content, "Error:")
	assert.True(t, failed.IsError())
}
