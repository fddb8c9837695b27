package llm

import (
	"context"
	"time"

	"github.com/groxaxo/chatmode/types"
)

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	TraceID     string             `json:"trace_id,omitempty"`
	Model       string             `json:"model"`
	Messages    []types.Message    `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
	TopP        float32            `json:"top_p,omitempty"`
	Stop        []string           `json:"stop,omitempty"`
	Tools       []types.ToolSchema `json:"tools,omitempty"`
	ToolChoice  string             `json:"tool_choice,omitempty"` // auto/none/<tool name>
	Timeout     time.Duration      `json:"timeout,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

// ChatUsage reports token consumption for a single completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatChoice is one candidate completion.
type ChatChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Message      types.Message `json:"message"`
}

// ChatResponse is a provider-agnostic chat completion response.
type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	Latency   time.Duration `json:"latency,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// Text returns the first choice's content, or "" when the response is empty.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ToolCalls returns the first choice's tool invocation requests.
func (r *ChatResponse) ToolCalls() []types.ToolCall {
	if r == nil || len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.ToolCalls
}

// HealthStatus reports a provider health probe result.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the unified LLM adapter interface. The orchestrator holds one
// Provider per participating agent; each generation call must honor context
// cancellation so an in-flight turn can be interrupted immediately.
type Provider interface {
	// Completion performs a synchronous chat request and returns the full
	// response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck performs a lightweight liveness probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}
