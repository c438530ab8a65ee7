package testing

import (
	"sync"

	"github.com/go-drift/hosting/pkg/component"
	"github.com/go-drift/hosting/pkg/geometry"
	"github.com/go-drift/hosting/pkg/layout"
)

// Diagnostic is a (level, message) pair an engine emits.
type Diagnostic struct {
	Level   layout.Level
	Message string
}

// ScriptedEngine is a layout.Engine that sizes through a BoxEngine and lets a
// test inject diagnostics, failures and blocking into upcoming computations.
// All methods are safe for concurrent use.
type ScriptedEngine struct {
	box *layout.BoxEngine

	mu        sync.Mutex
	logger    layout.LogFunc
	registers int
	calls     int
	ranges    []geometry.SizeRange
	emit      []Diagnostic
	fail      error
	gates     []*Gate
}

// NewScriptedEngine returns an engine with nothing scripted.
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{box: layout.NewBoxEngine()}
}

// SetLogger implements layout.LogRegistrar.
func (e *ScriptedEngine) SetLogger(fn layout.LogFunc) {
	e.mu.Lock()
	e.logger = fn
	e.registers++
	e.mu.Unlock()
	e.box.SetLogger(fn)
}

// Registrations returns how many times SetLogger was called.
func (e *ScriptedEngine) Registrations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registers
}

// Calls returns how many computations started.
func (e *ScriptedEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Ranges returns the size ranges computations were asked for, in order.
func (e *ScriptedEngine) Ranges() []geometry.SizeRange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]geometry.SizeRange(nil), e.ranges...)
}

// Emit queues diagnostics for the next computation.
func (e *ScriptedEngine) Emit(diags ...Diagnostic) {
	e.mu.Lock()
	e.emit = append(e.emit, diags...)
	e.mu.Unlock()
}

// FailNext makes the next computation return err.
func (e *ScriptedEngine) FailNext(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

// Block makes the next computation wait on the returned gate.
func (e *ScriptedEngine) Block() *Gate {
	g := newGate()
	e.mu.Lock()
	e.gates = append(e.gates, g)
	e.mu.Unlock()
	return g
}

// Compute implements layout.Sizer.
func (e *ScriptedEngine) Compute(c component.Component, r geometry.SizeRange) (*layout.Result, error) {
	e.mu.Lock()
	e.calls++
	e.ranges = append(e.ranges, r)
	diags := e.emit
	e.emit = nil
	fail := e.fail
	e.fail = nil
	var gate *Gate
	if len(e.gates) > 0 {
		gate = e.gates[0]
		e.gates = e.gates[1:]
	}
	logger := e.logger
	e.mu.Unlock()

	if gate != nil {
		close(gate.started)
		<-gate.release
	}
	if logger != nil {
		for _, d := range diags {
			logger(d.Level, d.Message)
		}
	}
	if fail != nil {
		return nil, fail
	}
	return e.box.Compute(c, r)
}

// Gate holds a blocked computation.
type Gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *Gate {
	return &Gate{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Started is closed once the blocked computation has begun.
func (g *Gate) Started() <-chan struct{} {
	return g.started
}

// Release lets the blocked computation finish.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}
