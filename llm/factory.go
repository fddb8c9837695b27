package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Factory resolves provider names to chat backends. Agent profiles reference
// providers by name; unknown names fail at session start.
type Factory struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewFactory creates an empty provider factory.
func NewFactory() *Factory {
	return &Factory{providers: make(map[string]Provider)}
}

// Register adds a named provider. Re-registering a name replaces it.
func (f *Factory) Register(p Provider) *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[p.Name()] = p
	return f
}

// Provider returns the named backend.
func (f *Factory) Provider(name string) (Provider, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("no provider registered under %q", name)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
