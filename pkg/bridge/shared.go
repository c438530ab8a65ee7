package bridge

import (
	"errors"
	"sync"

	"github.com/go-drift/hosting/pkg/layout"
)

// ErrOtherEngine is returned by Install when the process-wide bridge already
// owns the registration slot of a different engine.
var ErrOtherEngine = errors.New("bridge: process-wide bridge is bound to another engine")

var (
	sharedMu sync.Mutex
	shared   *Bridge
)

// Install creates the process-wide bridge for registrar and initializes it.
// Later calls for the same registrar return the existing bridge and ignore
// their options. A call for any other registrar fails with ErrOtherEngine:
// that engine's logger slot would stay empty and its Error diagnostics would
// never be escalated. Registrars are compared with ==.
func Install(registrar layout.LogRegistrar, opts ...Option) (*Bridge, error) {
	if registrar == nil {
		panic("bridge: Install called with nil registrar")
	}
	sharedMu.Lock()
	if shared == nil {
		shared = New(registrar, opts...)
	} else if shared.registrar != registrar {
		sharedMu.Unlock()
		return nil, ErrOtherEngine
	}
	b := shared
	sharedMu.Unlock()

	b.Initialize()
	return b, nil
}

// Shared returns the process-wide bridge, or nil before Install.
func Shared() *Bridge {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return shared
}

// ResetForTest forgets the process-wide bridge. The engine keeps whatever
// callback was registered with it.
func ResetForTest() {
	sharedMu.Lock()
	shared = nil
	sharedMu.Unlock()
}
