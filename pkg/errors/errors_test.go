package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHostingErrorString(t *testing.T) {
	err := &HostingError{
		Op:   "hosting.UpdateContext",
		Kind: KindProvider,
		Err:  fmt.Errorf("factory exploded"),
	}
	got := err.Error()
	want := "hosting.UpdateContext [provider]: factory exploded"
	if got != want {
		t.Errorf("HostingError.Error() = %q, want %q", got, want)
	}
}

func TestHostingErrorWithSurface(t *testing.T) {
	err := &HostingError{
		Op:      "hosting.Resize",
		Kind:    KindLayout,
		Surface: "surface-1",
		Err:     fmt.Errorf("bad range"),
	}
	want := "surface=surface-1"
	if got := err.Error(); !strings.Contains(got, want) {
		t.Errorf("error string %q should contain %q", got, want)
	}
}

func TestHostingErrorUnwrap(t *testing.T) {
	inner := &FatalDiagnostic{Level: "error", Message: "negative flex basis"}
	err := &HostingError{Op: "bridge.Run", Kind: KindFatal, Err: inner}

	fatal, ok := IsFatal(err)
	if !ok {
		t.Fatal("IsFatal should see through HostingError")
	}
	if fatal != inner {
		t.Errorf("IsFatal returned %v, want %v", fatal, inner)
	}
	if _, ok := IsFatal(fmt.Errorf("plain")); ok {
		t.Error("IsFatal should reject plain errors")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindProvider, "provider"},
		{KindLayout, "layout"},
		{KindDiagnostic, "diagnostic"},
		{KindFatal, "fatal"},
		{KindPanic, "panic"},
		{KindInit, "init"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{
		Value:     "test panic",
		Timestamp: time.Now(),
	}
	if got, want := err.Error(), "panic: test panic"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}

	err.Op = "component.Invoke"
	if got, want := err.Error(), "panic in component.Invoke: test panic"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestFatalDiagnosticString(t *testing.T) {
	err := &FatalDiagnostic{Level: "error", Message: "NaN width"}
	if got, want := err.Error(), "layout engine error: NaN width"; got != want {
		t.Errorf("FatalDiagnostic.Error() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	var capturedErr *HostingError
	handler := &testHandler{
		onError: func(err *HostingError) {
			capturedErr = err
		},
	}

	oldHandler := DefaultHandler
	SetHandler(handler)
	defer SetHandler(oldHandler)

	Report(&HostingError{
		Op:   "test.op",
		Kind: KindInit,
		Err:  fmt.Errorf("boom"),
	})

	if capturedErr == nil {
		t.Fatal("expected error to be captured")
	}
	if capturedErr.Op != "test.op" {
		t.Errorf("Op = %q, want %q", capturedErr.Op, "test.op")
	}
	if capturedErr.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestReportNil(t *testing.T) {
	called := false
	oldHandler := DefaultHandler
	SetHandler(&testHandler{onError: func(*HostingError) { called = true }})
	defer SetHandler(oldHandler)

	Report(nil)
	ReportPanic(nil)
	if called {
		t.Error("nil reports should not reach the handler")
	}
}

func TestRecover(t *testing.T) {
	var capturedPanic *PanicError
	handler := &testHandler{
		onPanic: func(err *PanicError) {
			capturedPanic = err
		},
	}

	oldHandler := DefaultHandler
	SetHandler(handler)
	defer SetHandler(oldHandler)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if capturedPanic == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if capturedPanic.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", capturedPanic.Value, "intentional test panic")
	}
	if capturedPanic.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", capturedPanic.Op, "test.recover")
	}
}

func TestRecoverWithCallback(t *testing.T) {
	oldHandler := DefaultHandler
	SetHandler(&testHandler{})
	defer SetHandler(oldHandler)

	var got any
	func() {
		defer RecoverWithCallback("test.callback", func(r any) { got = r })
		panic(42)
	}()
	if got != 42 {
		t.Errorf("callback received %v, want 42", got)
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Error("expected non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}

func TestSetHandlerNil(t *testing.T) {
	oldHandler := DefaultHandler
	defer SetHandler(oldHandler)

	SetHandler(nil)
	if _, ok := DefaultHandler.(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", DefaultHandler)
	}
}

func TestLogHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := &LogHandler{Verbose: true, Logger: zap.New(core)}

	h.HandleError(&HostingError{
		Op:         "hosting.Resize",
		Kind:       KindLayout,
		Surface:    "s1",
		Err:        fmt.Errorf("rejected"),
		StackTrace: "frame",
	})
	h.HandlePanic(&PanicError{Op: "component.Invoke", Value: "boom"})
	h.HandleError(nil)
	h.HandlePanic(nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["surface"] != "s1" {
		t.Errorf("surface field = %v, want s1", fields["surface"])
	}
	if fields["stack"] != "frame" {
		t.Errorf("stack field = %v, want frame", fields["stack"])
	}
	if entries[1].Message != "hosting panic" {
		t.Errorf("second entry = %q, want hosting panic", entries[1].Message)
	}
}

type testHandler struct {
	onError func(*HostingError)
	onPanic func(*PanicError)
}

func (h *testHandler) HandleError(err *HostingError) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}
