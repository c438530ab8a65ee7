package layout

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-drift/hosting/pkg/component"
	"github.com/go-drift/hosting/pkg/geometry"
)

// maxDepth bounds the component tree BoxEngine will walk.
const maxDepth = 64

// ErrNilComponent is returned by BoxEngine when asked to lay out nothing.
var ErrNilComponent = errors.New("layout: nil component")

// Measurer is implemented by components with an intrinsic size.
type Measurer interface {
	PreferredSize(r geometry.SizeRange) geometry.Size
}

// Composite is implemented by components with children.
type Composite interface {
	Children() []component.Component
}

// Fixed is content with a fixed preferred size.
type Fixed struct {
	Size geometry.Size
}

// PreferredSize implements Measurer.
func (f Fixed) PreferredSize(geometry.SizeRange) geometry.Size {
	return f.Size
}

// Fill is size-flexible content that takes all the space it is offered.
type Fill struct{}

// PreferredSize implements Measurer.
func (Fill) PreferredSize(r geometry.SizeRange) geometry.Size {
	return r.Max
}

// Stack overlays its children at the origin and sizes to the largest.
type Stack struct {
	Items []component.Component
}

// Children implements Composite.
func (s Stack) Children() []component.Component {
	return s.Items
}

// BoxEngine is a minimal Engine: it constrains intrinsic sizes into the
// offered range and stacks children at the origin. It is not a flex solver.
//
// Computations are serialized internally, so diagnostics for one computation
// are never interleaved with another's.
type BoxEngine struct {
	mu     sync.Mutex
	logMu  sync.RWMutex
	logger LogFunc
}

// NewBoxEngine returns a BoxEngine with no logger registered.
func NewBoxEngine() *BoxEngine {
	return &BoxEngine{}
}

// SetLogger implements LogRegistrar.
func (e *BoxEngine) SetLogger(fn LogFunc) {
	e.logMu.Lock()
	e.logger = fn
	e.logMu.Unlock()
}

// Compute implements Sizer.
func (e *BoxEngine) Compute(c component.Component, r geometry.SizeRange) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c == nil {
		e.logf(LevelError, "cannot lay out a nil component")
		return nil, ErrNilComponent
	}
	root, err := e.layoutNode(c, r, 0)
	if err != nil {
		return nil, err
	}
	return &Result{
		Size:  root.Frame.Size(),
		Range: r,
		Root:  root,
	}, nil
}

func (e *BoxEngine) layoutNode(c component.Component, r geometry.SizeRange, depth int) (*Node, error) {
	if depth > maxDepth {
		e.logf(LevelError, "component tree deeper than %d", maxDepth)
		return nil, fmt.Errorf("layout: tree depth exceeds %d", maxDepth)
	}
	node := &Node{Component: c}

	var content geometry.Size
	if comp, ok := c.(Composite); ok {
		loose := geometry.SizeRange{Max: r.Max}
		for _, child := range comp.Children() {
			if child == nil {
				e.logf(LevelWarn, "%T has a nil child; skipping", c)
				continue
			}
			n, err := e.layoutNode(child, loose, depth+1)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, n)
			content.Width = math.Max(content.Width, n.Frame.Width())
			content.Height = math.Max(content.Height, n.Frame.Height())
		}
	}

	if m, ok := c.(Measurer); ok {
		content = m.PreferredSize(r)
		if invalidSize(content) {
			e.logf(LevelError, "%T reported invalid preferred size %v", c, content)
			content = r.Min
		}
	}

	size := r.Constrain(content)
	if !size.ApproxEqual(content) {
		e.logf(LevelWarn, "%T wants %v, clamped to %v within %v", c, content, size, r)
	}
	node.Frame = geometry.RectFromOffsetAndSize(geometry.Offset{}, size)
	e.logf(LevelVerbose, "measured %T at %v", c, size)
	return node, nil
}

func (e *BoxEngine) logf(level Level, format string, args ...any) {
	e.logMu.RLock()
	fn := e.logger
	e.logMu.RUnlock()
	if fn != nil {
		fn(level, fmt.Sprintf(format, args...))
	}
}

func invalidSize(s geometry.Size) bool {
	return math.IsNaN(s.Width) || math.IsNaN(s.Height) || s.Width < 0 || s.Height < 0
}
