package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/go-drift/hosting/pkg/bridge"
	"github.com/go-drift/hosting/pkg/component"
	"github.com/go-drift/hosting/pkg/errors"
	"github.com/go-drift/hosting/pkg/hosting"
	"github.com/go-drift/hosting/pkg/layout"
	"github.com/go-drift/hosting/pkg/metrics"
	"github.com/go-drift/hosting/pkg/platform"
)

// SettleTimeout bounds how long Settle waits for asynchronous work.
const SettleTimeout = 5 * time.Second

// Harness wires a ScriptedEngine, a bridge, a UI loop and a mock clock
// together the way a host application would.
type Harness struct {
	T         testing.TB
	Engine    *ScriptedEngine
	Bridge    *bridge.Bridge
	Loop      *platform.Loop
	Clock     *clock.Mock
	Registry  *component.Registry
	Container *RecordingContainer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Logs      *observer.ObservedLogs

	mu      sync.Mutex
	fatals  []*errors.FatalDiagnostic
	relayed []Diagnostic
	errs    []*errors.HostingError
}

// NewHarness builds a harness and registers its teardown with t.Cleanup.
//
// The bridge records fatal diagnostics instead of panicking (see Fatals), and
// the global error handler records reported errors (see Reported).
func NewHarness(t testing.TB) *Harness {
	core, logs := observer.New(zapcore.DebugLevel)
	h := &Harness{
		T:         t,
		Engine:    NewScriptedEngine(),
		Loop:      platform.NewLoop(),
		Clock:     clock.NewMock(),
		Registry:  component.NewRegistry(),
		Container: &RecordingContainer{},
		Metrics:   metrics.New(nil),
		Logger:    zap.New(core),
		Logs:      logs,
	}
	h.Bridge = bridge.New(h.Engine,
		bridge.WithLogger(h.Logger),
		bridge.WithMetrics(h.Metrics),
		bridge.WithHandler(h.relay),
		bridge.WithFatalHook(h.recordFatal),
	)

	prev := errors.DefaultHandler
	errors.SetHandler(recordingHandler{h})
	t.Cleanup(func() { errors.SetHandler(prev) })
	return h
}

// SurfaceOptions returns the options that bind a surface to the harness.
func (h *Harness) SurfaceOptions(extra ...hosting.SurfaceOption) []hosting.SurfaceOption {
	return append([]hosting.SurfaceOption{
		hosting.WithBridge(h.Bridge),
		hosting.WithDispatcher(h.Loop),
		hosting.WithClock(h.Clock),
		hosting.WithLogger(h.Logger),
		hosting.WithMetrics(h.Metrics),
	}, extra...)
}

// NewSurface creates a surface bound to the harness and closes it at cleanup.
func (h *Harness) NewSurface(extra ...hosting.SurfaceOption) *hosting.Surface {
	s := hosting.NewSurface(h.Engine, h.SurfaceOptions(extra...)...)
	h.T.Cleanup(func() { _ = s.Close() })
	return s
}

// NewProvider registers factory in the harness registry.
func (h *Harness) NewProvider(factory component.Factory) *component.Provider {
	return h.Registry.Register(factory)
}

// NewController creates a controller bound to the harness container.
func (h *Harness) NewController(factory component.Factory, extra ...hosting.SurfaceOption) *hosting.Controller {
	c := hosting.NewController(h.Engine, factory, h.Container,
		hosting.WithRegistry(h.Registry),
		hosting.WithControllerLogger(h.Logger),
		hosting.WithSurfaceOptions(h.SurfaceOptions(extra...)...),
	)
	h.T.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), SettleTimeout)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

// Pump runs queued UI-thread callbacks and returns how many ran.
func (h *Harness) Pump() int {
	return h.Loop.Drain()
}

// Settle waits for the surface's in-flight computations, then pumps.
func (h *Harness) Settle(s *hosting.Surface) int {
	h.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), SettleTimeout)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		h.T.Fatalf("surface did not settle: %v", err)
	}
	return h.Pump()
}

// Fatals returns the fatal diagnostics escalated through the bridge.
func (h *Harness) Fatals() []*errors.FatalDiagnostic {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*errors.FatalDiagnostic(nil), h.fatals...)
}

// Relayed returns every diagnostic the bridge relayed to its handler.
func (h *Harness) Relayed() []Diagnostic {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Diagnostic(nil), h.relayed...)
}

// Reported returns the errors sent to the global error handler.
func (h *Harness) Reported() []*errors.HostingError {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*errors.HostingError(nil), h.errs...)
}

func (h *Harness) relay(level layout.Level, message string) {
	h.mu.Lock()
	h.relayed = append(h.relayed, Diagnostic{Level: level, Message: message})
	h.mu.Unlock()
}

func (h *Harness) recordFatal(f *errors.FatalDiagnostic) {
	h.mu.Lock()
	h.fatals = append(h.fatals, f)
	h.mu.Unlock()
}

type recordingHandler struct{ h *Harness }

func (r recordingHandler) HandleError(err *errors.HostingError) {
	r.h.mu.Lock()
	r.h.errs = append(r.h.errs, err)
	r.h.mu.Unlock()
}

func (r recordingHandler) HandlePanic(err *errors.PanicError) {
	r.h.T.Logf("recovered panic: %v", err)
}
