package hosting_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/hosting/pkg/bridge"
	"github.com/go-drift/hosting/pkg/component"
	herrors "github.com/go-drift/hosting/pkg/errors"
	"github.com/go-drift/hosting/pkg/geometry"
	"github.com/go-drift/hosting/pkg/hosting"
	"github.com/go-drift/hosting/pkg/layout"
	"github.com/go-drift/hosting/pkg/platform"
	hostingtest "github.com/go-drift/hosting/pkg/testing"
)

// toggled returns a factory that fails with err while fail is set.
func toggled(fail *atomic.Bool, err error, build func() component.Component) component.Factory {
	return func() (component.Component, error) {
		if fail.Load() {
			return nil, err
		}
		return build(), nil
	}
}

func TestControllerFirstAppearanceMountsSynchronously(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fixed(100, 50))

	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 320, Height: 480}))
	assert.Zero(t, h.Engine.Calls(), "nothing is computed before the first appearance")
	require.NoError(t, c.ViewWillAppear())

	res, ok := c.Surface().Mounted()
	require.True(t, ok, "first appearance must never show empty content")
	assert.Equal(t, hosting.Synchronous, c.Surface().Mode())
	assert.Zero(t, h.Loop.Pending())
	assert.LessOrEqual(t, res.Size.Width, 320.0)
	assert.LessOrEqual(t, res.Size.Height, 480.0)
	assert.Equal(t, geometry.Size{Width: 100, Height: 50}, res.Size)
}

func TestControllerLayoutPassResizesSurface(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fixed(100, 50))
	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 320, Height: 480}))
	require.NoError(t, c.ViewWillAppear())

	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 320, Height: 600}))

	assert.Equal(t, geometry.Size{Width: 320, Height: 600}, c.Bounds())
	assert.Equal(t, geometry.Size{Width: 320, Height: 600}, c.Surface().SizeRange().Max)
	ranges := h.Engine.Ranges()
	require.NotEmpty(t, ranges)
	last := ranges[len(ranges)-1]
	assert.Equal(t, geometry.Size{}, last.Min)
	assert.Equal(t, geometry.Size{Width: 320, Height: 600}, last.Max)
}

func TestControllerRequestsLayoutWhenContentSizeChanges(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fill())
	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 320, Height: 480}))
	require.NoError(t, c.ViewWillAppear())
	requests := h.Container.LayoutRequests()
	assert.Equal(t, 1, requests)

	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 320, Height: 480}))
	assert.Equal(t, requests, h.Container.LayoutRequests(), "unchanged size must not request layout")

	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 320, Height: 600}))
	assert.Equal(t, requests+1, h.Container.LayoutRequests())
}

func TestControllerAppearsOnce(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fixed(10, 10))

	require.NoError(t, c.ViewWillAppear())
	require.NoError(t, c.ViewWillAppear())

	assert.Equal(t, 1, h.Engine.Calls())
}

func TestControllerRetriesFailedMount(t *testing.T) {
	h := hostingtest.NewHarness(t)
	var fail atomic.Bool
	fail.Store(true)
	boom := errors.New("not ready")
	c := h.NewController(toggled(&fail, boom, func() component.Component {
		return layout.Fixed{Size: geometry.Size{Width: 5, Height: 5}}
	}))

	err := c.ViewWillAppear()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, hosting.Unmounted, c.Surface().State())
	assert.Empty(t, h.Fatals())

	fail.Store(false)
	require.NoError(t, c.ViewWillAppear())
	assert.Equal(t, hosting.Mounted, c.Surface().State())
}

func TestControllerEscalatesFatalMount(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fixed(10, 10))
	h.Engine.Emit(hostingtest.Diagnostic{Level: layout.LevelError, Message: "unsatisfiable"})

	err := c.ViewWillAppear()

	_, ok := herrors.IsFatal(err)
	require.True(t, ok)
	fatals := h.Fatals()
	require.Len(t, fatals, 1)
	assert.Equal(t, "unsatisfiable", fatals[0].Message)

	reported := h.Reported()
	require.NotEmpty(t, reported)
	assert.Equal(t, herrors.KindFatal, reported[len(reported)-1].Kind)
}

func TestControllerFatalPanicsWithoutHook(t *testing.T) {
	hostingtest.NewHarness(t)
	engine := hostingtest.NewScriptedEngine()
	c := hosting.NewController(engine, fixed(10, 10), nil,
		hosting.WithRegistry(component.NewRegistry()),
		hosting.WithSurfaceOptions(
			hosting.WithBridge(bridge.New(engine)),
			hosting.WithDispatcher(platform.NewLoop()),
		),
	)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	engine.Emit(hostingtest.Diagnostic{Level: layout.LevelError, Message: "corrupt tree"})

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_ = c.ViewWillAppear()
	}()

	fatal, ok := recovered.(*herrors.FatalDiagnostic)
	require.True(t, ok, "want *FatalDiagnostic panic, got %v", recovered)
	assert.Equal(t, "corrupt tree", fatal.Message)
}

func TestControllerReportsAsyncFailure(t *testing.T) {
	h := hostingtest.NewHarness(t)
	var fail atomic.Bool
	boom := errors.New("stale data")
	c := h.NewController(toggled(&fail, boom, func() component.Component { return layout.Fill{} }))
	require.NoError(t, c.ViewWillAppear())
	require.NoError(t, c.Surface().UpdateContext(c.Provider(), hosting.Asynchronous))
	h.Settle(c.Surface())

	fail.Store(true)
	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 50, Height: 50}))
	h.Settle(c.Surface())

	reported := h.Reported()
	require.Len(t, reported, 1)
	assert.Equal(t, "hosting.Controller", reported[0].Op)
	assert.ErrorIs(t, reported[0], boom)
	assert.Empty(t, h.Fatals())
	assert.Equal(t, hosting.Mounted, c.Surface().State(), "failure keeps the previous layout")
}

func TestControllerEscalatesAsyncFatal(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fill())
	require.NoError(t, c.ViewWillAppear())
	require.NoError(t, c.Surface().UpdateContext(c.Provider(), hosting.Asynchronous))
	h.Settle(c.Surface())

	h.Engine.Emit(hostingtest.Diagnostic{Level: layout.LevelError, Message: "overflow"})
	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 50, Height: 50}))
	h.Settle(c.Surface())

	fatals := h.Fatals()
	require.Len(t, fatals, 1)
	assert.Equal(t, "overflow", fatals[0].Message)
}

func TestControllerForwardsVisibility(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fill())
	require.NoError(t, c.ViewWillAppear())
	require.NoError(t, c.Surface().UpdateContext(c.Provider(), hosting.Asynchronous))
	h.Settle(c.Surface())
	calls := h.Engine.Calls()

	c.ViewDidDisappear()
	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 64, Height: 64}))
	h.Settle(c.Surface())
	assert.Equal(t, calls, h.Engine.Calls(), "hidden surface defers its layout")

	require.NoError(t, c.ViewWillAppear())
	h.Settle(c.Surface())
	assert.Equal(t, calls+1, h.Engine.Calls())
	res, _ := c.Surface().Mounted()
	assert.Equal(t, geometry.Size{Width: 64, Height: 64}, res.Size)
}

func TestControllerAcceptsDegenerateBounds(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fill())
	require.NoError(t, c.ViewWillAppear())

	require.NoError(t, c.ViewDidLayoutSubviews(geometry.Size{Width: -1, Height: -1}))

	res, ok := c.Surface().Mounted()
	require.True(t, ok)
	assert.True(t, res.Size.IsZero())
}

func TestControllerCloseReleasesProvider(t *testing.T) {
	h := hostingtest.NewHarness(t)
	c := h.NewController(fixed(1, 1))
	require.NoError(t, c.ViewWillAppear())
	require.Equal(t, 1, h.Registry.Len())

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))

	assert.Zero(t, c.Provider().Refs())
	assert.Zero(t, h.Registry.Len())
	assert.ErrorIs(t, c.ViewDidLayoutSubviews(geometry.Size{Width: 1, Height: 1}), hosting.ErrClosed)
}

func TestControllerUsesSharedBridge(t *testing.T) {
	hostingtest.NewHarness(t)
	bridge.ResetForTest()
	t.Cleanup(bridge.ResetForTest)
	engine := hostingtest.NewScriptedEngine()
	newController := func() *hosting.Controller {
		c := hosting.NewController(engine, fixed(1, 1), nil,
			hosting.WithRegistry(component.NewRegistry()),
			hosting.WithSurfaceOptions(hosting.WithDispatcher(platform.NewLoop())),
		)
		t.Cleanup(func() { _ = c.Close(context.Background()) })
		return c
	}

	a, b := newController(), newController()

	require.NotNil(t, bridge.Shared())
	assert.Same(t, bridge.Shared(), a.Surface().Bridge())
	assert.Same(t, a.Surface().Bridge(), b.Surface().Bridge())
	assert.Equal(t, 1, engine.Registrations())
	require.NoError(t, a.ViewWillAppear())
}
