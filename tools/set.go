package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/types"
)

// Set is the closed {tool name -> handler} mapping resolved for one agent at
// session start from its allow-list. Unknown names are rejected at
// resolution time; names outside the set are rejected at call time with an
// error fed back to the model rather than executed.
type Set struct {
	allowed map[string]struct{}
	reg     *Registry
	logger  *zap.Logger
}

// Resolve builds an agent's tool set from its allow-list. Every listed name
// must be registered; an unknown name fails resolution so misconfiguration
// surfaces at session start, not mid-conversation.
func (r *Registry) Resolve(allowlist []string) (*Set, error) {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		if !r.Has(name) {
			return nil, types.NewError(types.ErrInvalidConfiguration,
				fmt.Sprintf("unknown tool in allow-list: %s", name))
		}
		allowed[name] = struct{}{}
	}
	return &Set{allowed: allowed, reg: r, logger: r.logger}, nil
}

// Schemas returns the tool schemas offered to the model, in stable order.
func (s *Set) Schemas() []types.ToolSchema {
	names := make([]string, 0, len(s.allowed))
	for name := range s.allowed {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]types.ToolSchema, 0, len(names))
	for _, name := range names {
		if _, meta, ok := s.reg.get(name); ok {
			out = append(out, meta.Schema)
		}
	}
	return out
}

// Allowed reports whether the set permits the named tool.
func (s *Set) Allowed(name string) bool {
	_, ok := s.allowed[name]
	return ok
}

// Empty reports whether the set permits no tools.
func (s *Set) Empty() bool { return len(s.allowed) == 0 }

// Call executes one tool invocation. Failures (disallowed names, malformed
// arguments, handler errors) are returned inside the ToolResult as an error
// string for the model, never as a Go error: one bad call must not
// terminate the turn.
func (s *Set) Call(ctx context.Context, call types.ToolCall) types.ToolResult {
	start := time.Now()
	result := types.ToolResult{ToolCallID: call.ID, Name: call.Name}

	if _, ok := s.allowed[call.Name]; !ok {
		result.Error = fmt.Sprintf("tool %q is not allowed for this agent", call.Name)
		result.Duration = time.Since(start)
		s.logger.Warn("tool call rejected", zap.String("tool", call.Name))
		return result
	}

	fn, meta, ok := s.reg.get(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("tool %q is no longer registered", call.Name)
		result.Duration = time.Since(start)
		return result
	}

	if len(call.Arguments) > 0 && !json.Valid(call.Arguments) {
		result.Error = fmt.Sprintf("malformed arguments for tool %q: not valid JSON", call.Name)
		result.Duration = time.Since(start)
		s.logger.Warn("malformed tool arguments", zap.String("tool", call.Name))
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	out, err := fn(callCtx, call.Arguments)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.Error(err))
		return result
	}

	result.Result = out
	return result
}
