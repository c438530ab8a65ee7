// Package bridge relays layout engine diagnostics into the application's
// logging and error pipeline.
//
// The engine exposes a single logging registration slot. A Bridge owns that
// slot: Initialize registers the bridge's callback exactly once and it is never
// replaced or removed afterwards. Each (level, message) pair the engine emits
// is forwarded to the configured Handler and to a zap logger.
//
// Error-level diagnostics are fatal. The callback runs inside the engine's
// stack, so it must not unwind through it; instead the diagnostic is parked
// and Run returns it as a *errors.FatalDiagnostic once the engine call has
// returned. Escalate turns that value into the hard failure.
package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/go-drift/hosting/pkg/errors"
	"github.com/go-drift/hosting/pkg/layout"
	"github.com/go-drift/hosting/pkg/metrics"
)

// Handler receives every diagnostic the engine emits.
type Handler func(level layout.Level, message string)

// FatalHook terminates the operation that produced a fatal diagnostic.
type FatalHook func(fatal *errors.FatalDiagnostic)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the zap logger diagnostics are written to.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records diagnostic counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithHandler installs the initial relay handler.
func WithHandler(h Handler) Option {
	return func(b *Bridge) { b.handler = h }
}

// WithMinLevel drops diagnostics below level from the zap logger. The
// handler still receives every diagnostic.
func WithMinLevel(level layout.Level) Option {
	return func(b *Bridge) { b.minLevel = level }
}

// WithFatalHook replaces the default panic in Escalate.
func WithFatalHook(h FatalHook) Option {
	return func(b *Bridge) {
		if h != nil {
			b.fatalHook = h
		}
	}
}

// Bridge owns the engine's logging registration slot.
type Bridge struct {
	registrar     layout.LogRegistrar
	once          sync.Once
	registrations atomic.Int32

	handlerMu sync.RWMutex
	handler   Handler

	runMu     sync.Mutex
	pendingMu sync.Mutex
	pending   *errors.FatalDiagnostic

	logger    *zap.Logger
	minLevel  layout.Level
	metrics   *metrics.Metrics
	fatalHook FatalHook
}

// New returns an uninitialized bridge for the engine's registration slot.
func New(registrar layout.LogRegistrar, opts ...Option) *Bridge {
	if registrar == nil {
		panic("bridge: New called with nil registrar")
	}
	b := &Bridge{
		registrar: registrar,
		logger:    zap.NewNop(),
		fatalHook: panicHook,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize registers the bridge's callback with the engine. Only the first
// call registers; later calls do nothing.
func (b *Bridge) Initialize() {
	b.once.Do(func() {
		b.registrar.SetLogger(b.callback)
		b.registrations.Add(1)
		b.logger.Debug("layout engine logger registered")
	})
}

// Initialized reports whether the callback has been registered.
func (b *Bridge) Initialized() bool {
	return b.registrations.Load() > 0
}

// Registrations returns how many times the callback was registered with the
// engine. It is never more than one.
func (b *Bridge) Registrations() int {
	return int(b.registrations.Load())
}

// SetHandler replaces the relay handler. Nil removes it; escalation of
// Error-level diagnostics does not depend on a handler being set.
func (b *Bridge) SetHandler(h Handler) {
	b.handlerMu.Lock()
	b.handler = h
	b.handlerMu.Unlock()
}

// OnLog relays one diagnostic. The handler, if any, sees it exactly once.
// For LevelError it returns a *errors.FatalDiagnostic after forwarding.
func (b *Bridge) OnLog(level layout.Level, message string) error {
	b.metrics.Diagnostic(level.String())
	b.write(level, message)
	b.forward(level, message)

	if level >= layout.LevelError {
		return &errors.FatalDiagnostic{
			Level:     level.String(),
			Message:   message,
			Timestamp: time.Now(),
		}
	}
	return nil
}

// Run executes one engine computation and reports any fatal diagnostic the
// engine emitted while it ran. Calls are serialized so diagnostics are
// attributed to the computation that produced them.
//
// A fatal diagnostic emitted outside any Run is escalated before fn starts.
func (b *Bridge) Run(fn func() error) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if stray := b.takePending(); stray != nil {
		b.Escalate(stray)
	}
	err := fn()
	if fatal := b.takePending(); fatal != nil {
		return multierr.Combine(fatal, err)
	}
	return err
}

// Escalate reports err and invokes the fatal hook if err carries a fatal
// diagnostic. It returns false, doing nothing, for any other error.
func (b *Bridge) Escalate(err error) bool {
	fatal, ok := errors.IsFatal(err)
	if !ok {
		return false
	}
	errors.Report(&errors.HostingError{
		Op:         "bridge.Escalate",
		Kind:       errors.KindFatal,
		Err:        err,
		StackTrace: errors.CaptureStack(),
	})
	b.fatalHook(fatal)
	return true
}

// callback is the function registered with the engine.
func (b *Bridge) callback(level layout.Level, message string) {
	err := b.OnLog(level, message)
	if fatal, ok := errors.IsFatal(err); ok {
		b.pendingMu.Lock()
		if b.pending == nil {
			b.pending = fatal
		}
		b.pendingMu.Unlock()
	}
}

func (b *Bridge) takePending() *errors.FatalDiagnostic {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	fatal := b.pending
	b.pending = nil
	return fatal
}

func (b *Bridge) forward(level layout.Level, message string) {
	b.handlerMu.RLock()
	h := b.handler
	b.handlerMu.RUnlock()
	if h == nil {
		return
	}
	defer errors.Recover("bridge.Handler")
	h(level, message)
}

func (b *Bridge) write(level layout.Level, message string) {
	if level < b.minLevel {
		return
	}
	fields := []zap.Field{zap.Stringer("level", level)}
	switch level {
	case layout.LevelVerbose, layout.LevelDebug:
		b.logger.Debug(message, fields...)
	case layout.LevelInfo:
		b.logger.Info(message, fields...)
	case layout.LevelWarn:
		b.logger.Warn(message, fields...)
	default:
		b.logger.Error(message, fields...)
	}
}

func panicHook(fatal *errors.FatalDiagnostic) {
	panic(fatal)
}
