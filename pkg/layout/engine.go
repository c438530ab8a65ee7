// Package layout defines the contract the hosting layer consumes from a layout
// engine, plus BoxEngine, a minimal engine that honours it.
package layout

import (
	"time"

	"github.com/go-drift/hosting/pkg/component"
	"github.com/go-drift/hosting/pkg/geometry"
)

// LogFunc is the engine's diagnostic callback. The engine may call it zero or
// more times per computation, from whatever goroutine runs the computation.
type LogFunc func(level Level, message string)

// LogRegistrar exposes the engine's single logging registration slot.
type LogRegistrar interface {
	SetLogger(fn LogFunc)
}

// Sizer computes a sized, mounted layout for a component within a range.
type Sizer interface {
	Compute(c component.Component, r geometry.SizeRange) (*Result, error)
}

// Engine is a layout engine with both the sizing and logging contracts.
type Engine interface {
	Sizer
	LogRegistrar
}

// Node is one entry of a mounted layout tree.
type Node struct {
	Component component.Component
	Frame     geometry.Rect
	Children  []*Node
}

// Result is a computed layout.
type Result struct {
	// Size is the root's computed size; always within Range.
	Size geometry.Size
	// Range is the size range the layout was computed against.
	Range geometry.SizeRange
	// Root is the mounted layout tree.
	Root *Node
	// Generation is stamped by the hosting surface that requested the layout.
	Generation uint64
	// ComputedAt is stamped by the hosting surface when the layout completes.
	ComputedAt time.Time
}
