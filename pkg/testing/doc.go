// Package testing provides fakes and a harness for testing hosted surfaces.
//
// # Quick Start
//
// Create a harness, host a component, pump the UI thread:
//
//	func TestMyScreen(t *testing.T) {
//	    h := hostingtest.NewHarness(t)
//	    c := h.NewController(component.FactoryFunc(func() component.Component {
//	        return layout.Fixed{Size: geometry.Size{Width: 100, Height: 40}}
//	    }))
//
//	    c.ViewDidLayoutSubviews(geometry.Size{Width: 320, Height: 480})
//	    if err := c.ViewWillAppear(); err != nil {
//	        t.Fatal(err)
//	    }
//	    h.Pump()
//	}
//
// # Asynchronous Layouts
//
// Surfaces created by the harness deliver asynchronous results to the
// harness loop. Settle waits for in-flight work and drains the loop:
//
//	s.UpdateContext(p, hosting.Asynchronous)
//	h.Settle(s)
//
// ScriptedEngine can block a computation (Block) or emit diagnostics
// (Emit), and ManualDispatcher lets a test deliver completions out of order.
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import hostingtest "github.com/go-drift/hosting/pkg/testing"
package testing
