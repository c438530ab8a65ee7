// Package errors provides structured error handling for hosted component trees.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindProvider indicates a component factory failure.
	KindProvider
	// KindLayout indicates the layout engine rejected its input.
	KindLayout
	// KindDiagnostic indicates a non-fatal layout engine diagnostic.
	KindDiagnostic
	// KindFatal indicates an Error-severity layout engine diagnostic.
	KindFatal
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindInit indicates an initialization error.
	KindInit
)

func (k ErrorKind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindLayout:
		return "layout"
	case KindDiagnostic:
		return "diagnostic"
	case KindFatal:
		return "fatal"
	case KindPanic:
		return "panic"
	case KindInit:
		return "init"
	default:
		return "unknown"
	}
}

// HostingError represents a structured error raised while hosting a component tree.
type HostingError struct {
	// Op is the operation that failed (e.g., "hosting.UpdateContext").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Surface identifies the hosting surface, if applicable.
	Surface string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *HostingError) Error() string {
	if e.Surface != "" {
		return fmt.Sprintf("%s [%s] surface=%s: %v", e.Op, e.Kind, e.Surface, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *HostingError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "component.Invoke").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// FatalDiagnostic is an Error-severity message emitted by the layout engine.
// It marks a defect in the supplied component description and is never retried.
type FatalDiagnostic struct {
	// Level is the engine severity name, always "error" in practice.
	Level string
	// Message is the text the engine reported.
	Message string
	// Timestamp is when the engine reported it.
	Timestamp time.Time
}

func (e *FatalDiagnostic) Error() string {
	return fmt.Sprintf("layout engine %s: %s", e.Level, e.Message)
}

// IsFatal reports whether err carries a FatalDiagnostic and returns it.
func IsFatal(err error) (*FatalDiagnostic, bool) {
	var fatal *FatalDiagnostic
	if errors.As(err, &fatal) {
		return fatal, true
	}
	return nil, false
}

// ErrorHandler receives errors reported by the hosting layer.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *HostingError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
