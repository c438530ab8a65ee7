package testing

import (
	"sync"
	"sync/atomic"
)

// ManualDispatcher captures dispatched callbacks so a test decides when, and
// in which order, they run.
type ManualDispatcher struct {
	mu        sync.Mutex
	callbacks []func()
	arrived   chan struct{}
}

// NewManualDispatcher returns an empty dispatcher.
func NewManualDispatcher() *ManualDispatcher {
	return &ManualDispatcher{arrived: make(chan struct{}, 64)}
}

// Dispatch implements platform.Dispatcher.
func (d *ManualDispatcher) Dispatch(callback func()) bool {
	if callback == nil {
		return false
	}
	d.mu.Lock()
	d.callbacks = append(d.callbacks, callback)
	d.mu.Unlock()
	select {
	case d.arrived <- struct{}{}:
	default:
	}
	return true
}

// Arrived receives a value each time a callback is captured.
func (d *ManualDispatcher) Arrived() <-chan struct{} {
	return d.arrived
}

// Len returns the number of captured callbacks.
func (d *ManualDispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.callbacks)
}

// Take removes and returns the captured callbacks in arrival order.
func (d *ManualDispatcher) Take() []func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	cbs := d.callbacks
	d.callbacks = nil
	return cbs
}

// RunAll runs the captured callbacks in arrival order.
func (d *ManualDispatcher) RunAll() int {
	cbs := d.Take()
	for _, cb := range cbs {
		cb()
	}
	return len(cbs)
}

// RecordingContainer counts layout requests.
type RecordingContainer struct {
	requests atomic.Int32
}

// SetNeedsLayout implements hosting.Container.
func (c *RecordingContainer) SetNeedsLayout() {
	c.requests.Add(1)
}

// LayoutRequests returns how many layout passes were requested.
func (c *RecordingContainer) LayoutRequests() int {
	return int(c.requests.Load())
}
