package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/go-drift/hosting/pkg/bridge"
	"github.com/go-drift/hosting/pkg/component"
	herrors "github.com/go-drift/hosting/pkg/errors"
	"github.com/go-drift/hosting/pkg/geometry"
	"github.com/go-drift/hosting/pkg/layout"
	"github.com/go-drift/hosting/pkg/metrics"
	"github.com/go-drift/hosting/pkg/platform"
)

var (
	// ErrClosed is returned by operations on a closed surface.
	ErrClosed = errors.New("hosting: surface closed")
	// ErrNilProvider is returned when UpdateContext receives no provider.
	ErrNilProvider = errors.New("hosting: nil provider")
	// ErrNoResult is returned when the engine reports neither a layout nor an error.
	ErrNoResult = errors.New("hosting: engine returned no layout")
)

// UpdateMode selects how a surface computes layouts.
type UpdateMode int

const (
	// Synchronous computes on the caller and blocks until the layout is mounted.
	Synchronous UpdateMode = iota
	// Asynchronous computes on a worker and mounts the result on the UI thread.
	Asynchronous
)

func (m UpdateMode) String() string {
	switch m {
	case Synchronous:
		return "sync"
	case Asynchronous:
		return "async"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is the mount state of a surface.
type State int

const (
	// Unmounted means no layout has been mounted yet.
	Unmounted State = iota
	// Mounted means a layout is mounted.
	Mounted
)

func (s State) String() string {
	if s == Mounted {
		return "mounted"
	}
	return "unmounted"
}

// EventKind identifies a surface event.
type EventKind int

const (
	// EventSizeInvalidated reports that the mounted layout changed size.
	EventSizeInvalidated EventKind = iota
	// EventFailed reports an asynchronous computation failure.
	EventFailed
)

// Event is emitted by a surface on the UI thread.
type Event struct {
	Kind EventKind
	// Previous and Size are set for EventSizeInvalidated.
	Previous geometry.Size
	Size     geometry.Size
	// Err is set for EventFailed.
	Err error
	// Generation is the context generation the event belongs to.
	Generation uint64
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithBridge routes engine computations through b.
func WithBridge(b *bridge.Bridge) SurfaceOption {
	return func(s *Surface) { s.bridge = b }
}

// WithDispatcher sets how asynchronous completions reach the UI thread.
func WithDispatcher(d platform.Dispatcher) SurfaceOption {
	return func(s *Surface) {
		if d != nil {
			s.dispatch = d
		}
	}
}

// WithLogger sets the surface logger.
func WithLogger(l *zap.Logger) SurfaceOption {
	return func(s *Surface) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used to time and stamp layouts.
func WithClock(c clock.Clock) SurfaceOption {
	return func(s *Surface) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics records layout metrics.
func WithMetrics(m *metrics.Metrics) SurfaceOption {
	return func(s *Surface) { s.metrics = m }
}

// WithMaxConcurrentLayouts bounds concurrent asynchronous computations.
//
// A bridge serializes the engine calls it runs, so with a bridge attached
// only the factory invocations overlap; the engine itself still computes one
// layout at a time. Values above 1 only pay off for engines without one.
func WithMaxConcurrentLayouts(n int64) SurfaceOption {
	return func(s *Surface) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithPauseWhenHidden defers asynchronous recomputation while the surface is
// hidden. Enabled by default.
func WithPauseWhenHidden(pause bool) SurfaceOption {
	return func(s *Surface) { s.pauseWhenHidden = pause }
}

// Surface owns the mounted layout of a component tree.
//
// Lifecycle, UpdateContext and Resize are called from the UI thread.
// Asynchronous computations run on worker goroutines and hand their results
// back through the dispatcher; a result is mounted only if no newer context
// or size range has been installed since it was requested, so the surface
// always shows the latest non-superseded computation. Superseded computations
// are not cancelled; their results are dropped.
type Surface struct {
	id       string
	engine   layout.Sizer
	bridge   *bridge.Bridge
	dispatch platform.Dispatcher
	logger   *zap.Logger
	clock    clock.Clock
	metrics  *metrics.Metrics

	maxConcurrent   int64
	sem             *semaphore.Weighted
	pauseWhenHidden bool
	inflight        sync.WaitGroup

	mu         sync.Mutex
	provider   *component.Provider
	mode       UpdateMode
	sizeRange  geometry.SizeRange
	generation uint64
	mounted    *layout.Result
	err        error
	hidden     bool
	deferred   bool
	closed     bool
	listeners  map[int]func(Event)
	nextID     int
}

// NewSurface returns an unmounted surface laying out through engine.
//
// Without WithBridge, an engine that also implements layout.LogRegistrar is
// bound to the process-wide bridge. The bridge is initialized here, before
// any computation can run. NewSurface panics if the process-wide bridge
// already belongs to a different engine.
func NewSurface(engine layout.Sizer, opts ...SurfaceOption) *Surface {
	if engine == nil {
		panic("hosting: NewSurface called with nil engine")
	}
	s := &Surface{
		id:              uuid.NewString(),
		engine:          engine,
		dispatch:        platform.Global,
		logger:          zap.NewNop(),
		clock:           clock.New(),
		maxConcurrent:   1,
		pauseWhenHidden: true,
		listeners:       make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(s.maxConcurrent)

	if s.bridge == nil {
		if reg, ok := engine.(layout.LogRegistrar); ok {
			b, err := bridge.Install(reg, bridge.WithLogger(s.logger), bridge.WithMetrics(s.metrics))
			if err != nil {
				panic(fmt.Sprintf("hosting: NewSurface: %v; pass WithBridge for additional engines", err))
			}
			s.bridge = b
		}
	}
	s.logger = s.logger.With(zap.String("surface", s.id))
	if s.bridge != nil {
		s.bridge.Initialize()
	}
	return s
}

// ID returns the surface identifier used in logs and errors.
func (s *Surface) ID() string {
	return s.id
}

// Bridge returns the bridge computations run through, or nil.
func (s *Surface) Bridge() *bridge.Bridge {
	return s.bridge
}

// State reports whether a layout is mounted.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted != nil {
		return Mounted
	}
	return Unmounted
}

// Mode returns the update mode of the current context.
func (s *Surface) Mode() UpdateMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Mounted returns the mounted layout.
func (s *Surface) Mounted() (*layout.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted, s.mounted != nil
}

// SizeRange returns the active size range.
func (s *Surface) SizeRange() geometry.SizeRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeRange
}

// Err returns the failure of the most recent computation, or nil if it succeeded.
// A failure never replaces the mounted layout.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnEvent registers a listener for surface events and returns a function
// that removes it. Listeners run on the UI thread.
func (s *Surface) OnEvent(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.listeners != nil {
		s.listeners[id] = fn
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// UpdateContext installs provider and computes a layout in mode.
//
// In Synchronous mode it returns once the new layout is mounted, or with the
// computation's error; the previous mount is kept on failure. In Asynchronous
// mode it returns immediately and failures arrive as EventFailed.
func (s *Surface) UpdateContext(provider *component.Provider, mode UpdateMode) error {
	if provider == nil {
		return ErrNilProvider
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	provider.Retain()
	old := s.provider
	s.provider = provider
	s.mode = mode
	s.generation++
	gen, r := s.generation, s.sizeRange
	s.mu.Unlock()

	if old != nil {
		old.Release()
	}
	return s.recompute(gen, provider, r, mode)
}

// Resize sets the active size range and recomputes under the current mode.
// Before the first UpdateContext it only records the range.
func (s *Surface) Resize(r geometry.SizeRange) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.sizeRange = r
	p := s.provider
	if p == nil {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen, mode := s.generation, s.mode
	s.mu.Unlock()

	return s.recompute(gen, p, r, mode)
}

// HostingViewWillAppear marks the surface visible and runs any asynchronous
// recomputation deferred while it was hidden.
func (s *Surface) HostingViewWillAppear() {
	s.mu.Lock()
	if !s.hidden || s.closed {
		s.mu.Unlock()
		return
	}
	s.hidden = false
	if !s.deferred || s.provider == nil || s.mode != Asynchronous {
		s.deferred = false
		s.mu.Unlock()
		return
	}
	s.deferred = false
	s.generation++
	gen, p, r := s.generation, s.provider, s.sizeRange
	s.mu.Unlock()

	s.logger.Debug("running deferred layout", zap.Uint64("generation", gen))
	s.startAsync(gen, p, r)
}

// HostingViewDidDisappear marks the surface hidden.
func (s *Surface) HostingViewDidDisappear() {
	s.mu.Lock()
	s.hidden = true
	s.mu.Unlock()
}

// Close releases the provider, drops listeners and invalidates in-flight work.
// It is safe to call more than once.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.generation++
	p := s.provider
	s.provider = nil
	s.listeners = nil
	s.mu.Unlock()

	if p != nil {
		p.Release()
	}
	return nil
}

// Wait blocks until every asynchronous computation has handed its result to
// the dispatcher, or ctx is done.
func (s *Surface) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Surface) recompute(gen uint64, p *component.Provider, r geometry.SizeRange, mode UpdateMode) error {
	if mode == Synchronous {
		s.mu.Lock()
		s.deferred = false
		s.mu.Unlock()
		res, err := s.compute(p, r, mode)
		return s.apply(gen, res, err, mode)
	}

	s.mu.Lock()
	if s.hidden && s.pauseWhenHidden {
		s.deferred = true
		s.mu.Unlock()
		s.logger.Debug("deferring layout while hidden", zap.Uint64("generation", gen))
		return nil
	}
	s.mu.Unlock()
	s.startAsync(gen, p, r)
	return nil
}

func (s *Surface) startAsync(gen uint64, p *component.Provider, r geometry.SizeRange) {
	p.Retain()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer p.Release()

		if err := s.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		if s.superseded(gen) {
			s.sem.Release(1)
			s.metrics.StaleDiscarded()
			return
		}
		res, err := s.compute(p, r, Asynchronous)
		s.sem.Release(1)

		deliver := func() { _ = s.apply(gen, res, err, Asynchronous) }
		if !s.dispatch.Dispatch(deliver) {
			herrors.Report(&herrors.HostingError{
				Op:      "hosting.deliver",
				Kind:    herrors.KindInit,
				Err:     errors.New("no UI dispatcher registered; applying layout on worker"),
				Surface: s.id,
			})
			deliver()
		}
	}()
}

func (s *Surface) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || gen != s.generation
}

// compute invokes the provider and lays out its component. It touches no
// surface state and may run on any goroutine.
func (s *Surface) compute(p *component.Provider, r geometry.SizeRange, mode UpdateMode) (res *layout.Result, err error) {
	start := s.clock.Now()
	defer func() {
		s.metrics.ObserveLayout(mode.String(), s.clock.Since(start), err)
	}()

	c, err := p.Invoke()
	if err != nil {
		return nil, s.annotate(err)
	}

	err = s.run(func() (runErr error) {
		defer herrors.RecoverWithCallback("layout.Compute", func(v any) {
			runErr = &herrors.PanicError{Op: "layout.Compute", Value: v, Timestamp: s.clock.Now()}
		})
		res, runErr = s.engine.Compute(c, r)
		return runErr
	})
	if err != nil {
		return nil, s.layoutFailure(err)
	}
	if res == nil {
		return nil, s.layoutFailure(ErrNoResult)
	}
	res.ComputedAt = s.clock.Now()
	return res, nil
}

func (s *Surface) run(fn func() error) error {
	if s.bridge != nil {
		return s.bridge.Run(fn)
	}
	return fn()
}

// apply mounts a computed layout on the UI thread.
func (s *Surface) apply(gen uint64, res *layout.Result, err error, mode UpdateMode) error {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		s.metrics.StaleDiscarded()
		s.logger.Debug("discarding stale layout", zap.Uint64("generation", gen))
		return nil
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("layout failed", zap.Stringer("mode", mode), zap.Error(err))
		if mode == Asynchronous {
			s.emit(Event{Kind: EventFailed, Err: err, Generation: gen})
		}
		return err
	}

	var prev geometry.Size
	if s.mounted != nil {
		prev = s.mounted.Size
	}
	res.Generation = gen
	s.mounted = res
	s.err = nil
	s.mu.Unlock()

	s.logger.Debug("mounted layout",
		zap.Stringer("mode", mode),
		zap.Uint64("generation", gen),
		zap.Stringer("size", res.Size))
	if !prev.ApproxEqual(res.Size) {
		s.metrics.SizeInvalidated()
		s.emit(Event{Kind: EventSizeInvalidated, Previous: prev, Size: res.Size, Generation: gen})
	}
	return nil
}

func (s *Surface) emit(ev Event) {
	s.mu.Lock()
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if len(listeners) == 0 {
		if ev.Kind == EventFailed {
			herrors.Report(&herrors.HostingError{
				Op:      "hosting.Surface",
				Kind:    kindOf(ev.Err),
				Err:     ev.Err,
				Surface: s.id,
			})
		}
		return
	}
	for _, fn := range listeners {
		fn(ev)
	}
}

func (s *Surface) annotate(err error) error {
	var he *herrors.HostingError
	if errors.As(err, &he) && he.Surface == "" {
		he.Surface = s.id
	}
	return err
}

func (s *Surface) layoutFailure(err error) error {
	return &herrors.HostingError{
		Op:        "layout.Compute",
		Kind:      kindOf(err),
		Err:       err,
		Surface:   s.id,
		Timestamp: s.clock.Now(),
	}
}

func kindOf(err error) herrors.ErrorKind {
	if _, ok := herrors.IsFatal(err); ok {
		return herrors.KindFatal
	}
	var he *herrors.HostingError
	if errors.As(err, &he) {
		return he.Kind
	}
	var pe *herrors.PanicError
	if errors.As(err, &pe) {
		return herrors.KindPanic
	}
	return herrors.KindLayout
}
