// Package mocks provides test doubles for the chat, embedding, and TTS
// providers. Mocks are builder-style and safe for concurrent use.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/groxaxo/chatmode/llm"
	"github.com/groxaxo/chatmode/types"
)

// ChatProvider is a mock llm.Provider with fixed responses, a response
// queue, error injection, and call recording.
type ChatProvider struct {
	mu sync.Mutex

	name     string
	response string
	queue    []*llm.ChatResponse
	toolCalls []types.ToolCall
	err      error
	delay    time.Duration

	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls []*llm.ChatRequest
}

// NewChatProvider creates a mock chat provider.
func NewChatProvider() *ChatProvider {
	return &ChatProvider{
		name:     "mock",
		response: "Mock response",
	}
}

// WithName sets the provider name.
func (m *ChatProvider) WithName(name string) *ChatProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResponse sets the fixed response content.
func (m *ChatProvider) WithResponse(response string) *ChatProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithToolCalls makes the next response request the given tool invocations.
// Subsequent calls fall back to the fixed response, mirroring the two-call
// tool round trip.
func (m *ChatProvider) WithToolCalls(calls ...types.ToolCall) *ChatProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = calls
	return m
}

// WithError makes every completion fail with err.
func (m *ChatProvider) WithError(err error) *ChatProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay simulates generation latency. Delays respect context
// cancellation so in-flight turns can be interrupted in tests.
func (m *ChatProvider) WithDelay(d time.Duration) *ChatProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithCompletionFunc overrides the completion behavior entirely.
func (m *ChatProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *ChatProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// Enqueue appends a canned response to the response queue. Queued responses
// are consumed before the fixed response.
func (m *ChatProvider) Enqueue(resp *llm.ChatResponse) *ChatProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
	return m
}

// Completion implements llm.Provider.
func (m *ChatProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.completionFunc
	err := m.err
	delay := m.delay
	name := m.name

	var resp *llm.ChatResponse
	switch {
	case len(m.queue) > 0:
		resp = m.queue[0]
		m.queue = m.queue[1:]
	case len(m.toolCalls) > 0:
		msg := types.Message{Role: types.RoleAssistant}.WithToolCalls(m.toolCalls)
		m.toolCalls = nil
		resp = &llm.ChatResponse{
			Provider: name,
			Model:    req.Model,
			Choices:  []llm.ChatChoice{{FinishReason: "tool_calls", Message: msg}},
		}
	default:
		resp = &llm.ChatResponse{
			Provider: name,
			Model:    req.Model,
			Choices: []llm.ChatChoice{{
				FinishReason: "stop",
				Message:      types.NewAssistantMessage(m.response),
			}},
			Usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return resp, nil
}

// HealthCheck implements llm.Provider.
func (m *ChatProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

// Name implements llm.Provider.
func (m *ChatProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Calls returns the recorded requests.
func (m *ChatProvider) Calls() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*llm.ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of completion calls made.
func (m *ChatProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
