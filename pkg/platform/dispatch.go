// Package platform schedules work onto the UI thread.
package platform

import "sync"

// Dispatcher schedules callbacks on the UI thread.
type Dispatcher interface {
	// Dispatch queues callback and reports whether it was accepted.
	Dispatch(callback func()) bool
}

// DispatchFunc adapts a plain scheduling function to a Dispatcher.
type DispatchFunc func(callback func())

// Dispatch implements Dispatcher.
func (f DispatchFunc) Dispatch(callback func()) bool {
	if f == nil || callback == nil {
		return false
	}
	f(callback)
	return true
}

// Immediate runs callbacks inline on the calling goroutine.
var Immediate Dispatcher = DispatchFunc(func(cb func()) { cb() })

var (
	dispatchMu   sync.RWMutex
	dispatchFunc func(callback func())
)

// RegisterDispatch sets the process-wide function used to schedule callbacks
// on the UI thread. The host calls this once during startup.
func RegisterDispatch(fn func(callback func())) {
	dispatchMu.Lock()
	dispatchFunc = fn
	dispatchMu.Unlock()
}

// Dispatch schedules a callback on the UI thread through the registered function.
// Returns true if the callback was successfully scheduled, false if no dispatch function
// is registered or the callback is nil.
func Dispatch(callback func()) bool {
	dispatchMu.RLock()
	fn := dispatchFunc
	dispatchMu.RUnlock()
	if fn == nil || callback == nil {
		return false
	}
	fn(callback)
	return true
}

// Global is a Dispatcher backed by the function passed to RegisterDispatch.
var Global Dispatcher = globalDispatcher{}

type globalDispatcher struct{}

func (globalDispatcher) Dispatch(callback func()) bool {
	return Dispatch(callback)
}

// ResetForTest clears the registered dispatch function.
func ResetForTest() {
	RegisterDispatch(nil)
}
