// Package tools provides the tool registry and per-agent allow-list
// execution used during conversation turns.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/types"
)

// Func defines the tool function signature.
type Func func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Metadata describes a registered tool.
type Metadata struct {
	Schema  types.ToolSchema // Tool JSON Schema
	Timeout time.Duration    // Execution timeout (default 30s)
}

// Registry holds the process-wide set of available tools. Agents never call
// it directly; each agent gets a Set resolved from its allow-list at session
// start.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Func
	metadata map[string]Metadata
	logger   *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:    make(map[string]Func),
		metadata: make(map[string]Metadata),
		logger:   logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(name string, fn Func, metadata Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}
	if metadata.Timeout == 0 {
		metadata.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = metadata

	r.logger.Info("tool registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns the schemas of all registered tools.
func (r *Registry) List() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ToolSchema, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, r.metadata[name].Schema)
	}
	return out
}

func (r *Registry) get(name string) (Func, Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tools[name]
	if !ok {
		return nil, Metadata{}, false
	}
	return fn, r.metadata[name], true
}
