package types

import (
	"encoding/json"
	"time"
)

// ToolSchema defines a tool's interface for LLM function calling.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// ToMessage converts the ToolResult to a tool-role message. Execution
// failures become an error string in the message content so the model can
// recover gracefully instead of the call being raised to the admin caller.
func (tr ToolResult) ToMessage() Message {
	content := string(tr.Result)
	if tr.Error != "" {
		content = "Error: " + tr.Error
	}
	return Message{
		Role:       RoleTool,
		Content:    content,
		Name:       tr.Name,
		ToolCallID: tr.ToolCallID,
	}
}

// IsError returns true if the tool execution failed.
func (tr ToolResult) IsError() bool {
	return tr.Error != ""
}
