// Package component wraps component factories in reference-counted handles
// so they can be retained by in-flight layout work.
package component

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	herrors "github.com/go-drift/hosting/pkg/errors"
)

// Component is an immutable description of renderable content.
// The hosting layer never looks inside it; only the layout engine does.
type Component = any

// Factory produces a root component. It takes no input and may fail.
type Factory func() (Component, error)

// FactoryFunc adapts an infallible builder to a Factory.
func FactoryFunc(build func() Component) Factory {
	return func() (Component, error) {
		return build(), nil
	}
}

var (
	// ErrReleased is returned when invoking a provider whose last reference is gone.
	ErrReleased = errors.New("component: provider released")
	// ErrNilComponent is returned when a factory yields no component.
	ErrNilComponent = errors.New("component: factory returned nil component")
)

// Handle identifies a provider in its Registry.
type Handle int64

// Provider wraps exactly one Factory with identity and a reference count.
//
// A Provider starts with one reference owned by whoever registered it. Every
// holder that outlives the call it received the provider in must Retain it and
// Release it when done. Invoke calls the factory on every call; results are
// never cached.
type Provider struct {
	handle   Handle
	factory  Factory
	refs     atomic.Int32
	registry *Registry
}

// Handle returns the provider's identity within its registry.
func (p *Provider) Handle() Handle {
	return p.handle
}

// Refs returns the current reference count.
func (p *Provider) Refs() int32 {
	return p.refs.Load()
}

// Retain adds a reference. Retaining a released provider has no effect.
func (p *Provider) Retain() *Provider {
	for {
		n := p.refs.Load()
		if n <= 0 {
			return p
		}
		if p.refs.CompareAndSwap(n, n+1) {
			return p
		}
	}
}

// Release drops a reference. When the count reaches zero the provider leaves
// its registry and further Invoke calls fail with ErrReleased.
func (p *Provider) Release() {
	for {
		n := p.refs.Load()
		if n <= 0 {
			return
		}
		if p.refs.CompareAndSwap(n, n-1) {
			if n == 1 && p.registry != nil {
				p.registry.remove(p.handle)
			}
			return
		}
	}
}

// Invoke calls the wrapped factory and returns its component.
//
// Errors and panics raised by the factory are returned as a provider failure
// (*errors.HostingError with KindProvider).
func (p *Provider) Invoke() (c Component, err error) {
	if p.refs.Load() <= 0 {
		return nil, providerFailure(p.handle, ErrReleased)
	}
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = providerFailure(p.handle, &herrors.PanicError{
				Op:         "component.Invoke",
				Value:      r,
				StackTrace: herrors.CaptureStack(),
				Timestamp:  time.Now(),
			})
		}
	}()

	c, err = p.factory()
	if err != nil {
		return nil, providerFailure(p.handle, err)
	}
	if c == nil {
		return nil, providerFailure(p.handle, ErrNilComponent)
	}
	return c, nil
}

func (p *Provider) String() string {
	return fmt.Sprintf("provider#%d(refs=%d)", p.handle, p.refs.Load())
}

func providerFailure(h Handle, err error) error {
	return &herrors.HostingError{
		Op:        fmt.Sprintf("component.Invoke#%d", h),
		Kind:      herrors.KindProvider,
		Err:       err,
		Timestamp: time.Now(),
	}
}
