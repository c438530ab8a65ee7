package platform

import (
	"context"
	"sync"
)

// Loop is a UI-thread callback queue. Any goroutine may Dispatch; callbacks
// only run when the UI thread drains the queue, in the order they were queued.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop returns an empty loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Dispatch implements Dispatcher. It is safe to call from any goroutine.
func (l *Loop) Dispatch(callback func()) bool {
	if callback == nil {
		return false
	}
	l.mu.Lock()
	l.queue = append(l.queue, callback)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain runs every queued callback on the calling goroutine and returns how
// many were taken. Callbacks queued while draining run in the next Drain.
// A panicking callback propagates to the caller; callbacks after it stay queued.
func (l *Loop) Drain() int {
	l.mu.Lock()
	callbacks := l.queue
	l.queue = nil
	l.mu.Unlock()

	next := 0
	defer func() {
		if next < len(callbacks) {
			l.requeue(callbacks[next:])
		}
	}()
	for next < len(callbacks) {
		cb := callbacks[next]
		next++
		cb()
	}
	return len(callbacks)
}

// Run drains the queue on the calling goroutine until ctx is done. That
// goroutine is the UI thread for everything dispatched through l.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// requeue puts callbacks left behind by a panicking callback back at the
// front of the queue.
func (l *Loop) requeue(rest []func()) {
	l.mu.Lock()
	l.queue = append(append([]func(){}, rest...), l.queue...)
	l.mu.Unlock()
}
