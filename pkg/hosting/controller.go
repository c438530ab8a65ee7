package hosting

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/go-drift/hosting/pkg/component"
	herrors "github.com/go-drift/hosting/pkg/errors"
	"github.com/go-drift/hosting/pkg/geometry"
	"github.com/go-drift/hosting/pkg/layout"
)

// Container is the imperative view that embeds a hosted component tree.
type Container interface {
	// SetNeedsLayout asks the container to schedule a layout pass.
	SetNeedsLayout()
}

// ContainerFunc adapts a function to a Container.
type ContainerFunc func()

// SetNeedsLayout implements Container.
func (f ContainerFunc) SetNeedsLayout() {
	f()
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerConfig)

type controllerConfig struct {
	registry       *component.Registry
	surfaceOptions []SurfaceOption
	logger         *zap.Logger
}

// WithRegistry sets the table the controller's provider is registered in.
func WithRegistry(r *component.Registry) ControllerOption {
	return func(c *controllerConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithSurfaceOptions configures the controller's surface.
func WithSurfaceOptions(opts ...SurfaceOption) ControllerOption {
	return func(c *controllerConfig) {
		c.surfaceOptions = append(c.surfaceOptions, opts...)
	}
}

// WithControllerLogger sets the controller logger. The surface gets the same
// logger unless WithSurfaceOptions overrides it.
func WithControllerLogger(l *zap.Logger) ControllerOption {
	return func(c *controllerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller drives one Surface from a container's lifecycle.
//
// All methods are called from the UI thread. The first appearance mounts
// synchronously so the container never shows empty content; every layout
// pass resizes the surface to the container bounds. When the hosted content
// changes size the controller asks the container for a new layout pass
// rather than laying out itself.
type Controller struct {
	provider  *component.Provider
	surface   *Surface
	container Container
	logger    *zap.Logger

	bounds      geometry.Size
	mounted     bool
	closed      bool
	unsubscribe func()
}

// NewController wraps factory in a provider and creates the surface that will
// host it. Nothing is computed until ViewWillAppear.
func NewController(engine layout.Sizer, factory component.Factory, container Container, opts ...ControllerOption) *Controller {
	cfg := controllerConfig{
		registry: component.DefaultRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if container == nil {
		container = ContainerFunc(func() {})
	}

	surfaceOpts := append([]SurfaceOption{WithLogger(cfg.logger)}, cfg.surfaceOptions...)
	c := &Controller{
		provider:  cfg.registry.Register(factory),
		surface:   NewSurface(engine, surfaceOpts...),
		container: container,
		logger:    cfg.logger,
	}
	c.unsubscribe = c.surface.OnEvent(c.handleEvent)
	return c
}

// Surface returns the hosted surface.
func (c *Controller) Surface() *Surface {
	return c.surface
}

// Provider returns the provider wrapping the controller's factory.
func (c *Controller) Provider() *component.Provider {
	return c.provider
}

// ViewWillAppear mounts the component tree synchronously on the first call
// and forwards the appearance to the surface.
//
// A fatal layout diagnostic is escalated. Other failures are returned and the
// next appearance retries the mount.
func (c *Controller) ViewWillAppear() error {
	if !c.mounted {
		if err := c.surface.UpdateContext(c.provider, Synchronous); err != nil {
			c.escalate(err)
			return err
		}
		c.mounted = true
	}
	c.surface.HostingViewWillAppear()
	return nil
}

// ViewDidDisappear forwards the disappearance to the surface.
func (c *Controller) ViewDidDisappear() {
	c.surface.HostingViewDidDisappear()
}

// ViewDidLayoutSubviews resizes the surface to the container bounds: anything
// from zero up to bounds.
func (c *Controller) ViewDidLayoutSubviews(bounds geometry.Size) error {
	c.bounds = bounds
	if err := c.surface.Resize(geometry.SizeRangeFromBounds(bounds)); err != nil {
		c.escalate(err)
		return err
	}
	return nil
}

// Bounds returns the bounds of the last layout pass.
func (c *Controller) Bounds() geometry.Size {
	return c.bounds
}

// Close tears down the surface and waits for in-flight computations to
// finish or ctx to end.
func (c *Controller) Close(ctx context.Context) error {
	if !c.closed {
		c.closed = true
		c.unsubscribe()
		c.provider.Release()
	}
	err := c.surface.Close()
	return multierr.Append(err, c.surface.Wait(ctx))
}

func (c *Controller) handleEvent(ev Event) {
	switch ev.Kind {
	case EventSizeInvalidated:
		c.logger.Debug("content size changed",
			zap.Stringer("from", ev.Previous),
			zap.Stringer("to", ev.Size))
		c.container.SetNeedsLayout()
	case EventFailed:
		if c.escalate(ev.Err) {
			return
		}
		herrors.Report(&herrors.HostingError{
			Op:      "hosting.Controller",
			Kind:    kindOf(ev.Err),
			Err:     ev.Err,
			Surface: c.surface.ID(),
		})
	}
}

// escalate hands a fatal diagnostic to the bridge. It reports whether err was fatal.
func (c *Controller) escalate(err error) bool {
	fatal, ok := herrors.IsFatal(err)
	if !ok {
		return false
	}
	if b := c.surface.Bridge(); b != nil {
		return b.Escalate(err)
	}
	panic(fatal)
}
