package component

import (
	"sync"
	"sync/atomic"
)

// Registry is the handle table for live providers.
type Registry struct {
	providers map[Handle]*Provider
	nextID    atomic.Int64
	mu        sync.RWMutex
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide provider table.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewProvider registers factory in the default registry.
func NewProvider(factory Factory) *Provider {
	return DefaultRegistry().Register(factory)
}

// NewRegistry returns an empty provider table.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Handle]*Provider)}
}

// Register wraps factory in a Provider holding one reference.
// It panics if factory is nil.
func (r *Registry) Register(factory Factory) *Provider {
	if factory == nil {
		panic("component: Register called with nil factory")
	}
	p := &Provider{
		handle:   Handle(r.nextID.Add(1)),
		factory:  factory,
		registry: r,
	}
	p.refs.Store(1)

	r.mu.Lock()
	r.providers[p.handle] = p
	r.mu.Unlock()
	return p
}

// Lookup returns the live provider for h.
func (r *Registry) Lookup(h Handle) (*Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[h]
	return p, ok
}

// Len returns the number of live providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (r *Registry) remove(h Handle) {
	r.mu.Lock()
	delete(r.providers, h)
	r.mu.Unlock()
}
