// Package hostfx wires the hosting stack into an fx application.
//
// The module needs a layout.Engine; BoxEngine provides the built-in one.
// An optional *config.Config, prometheus.Registerer or platform.Dispatcher
// in the graph overrides the defaults.
package hostfx

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/go-drift/hosting/pkg/bridge"
	"github.com/go-drift/hosting/pkg/component"
	"github.com/go-drift/hosting/pkg/config"
	herrors "github.com/go-drift/hosting/pkg/errors"
	"github.com/go-drift/hosting/pkg/hosting"
	"github.com/go-drift/hosting/pkg/layout"
	"github.com/go-drift/hosting/pkg/metrics"
	"github.com/go-drift/hosting/pkg/platform"
)

// Module provides the logger, metrics, the process-wide bridge and a Host.
// The bridge is built and initialized during application construction, before
// any surface can compute a layout.
var Module = fx.Module("hosting",
	fx.Provide(
		ProvideConfig,
		ProvideLogger,
		ProvideMetrics,
		ProvideBridge,
		NewHost,
	),
	fx.Invoke(registerLifecycle),
)

// BoxEngine provides layout.BoxEngine as the application's layout.Engine.
var BoxEngine = fx.Provide(
	fx.Annotate(
		layout.NewBoxEngine,
		fx.As(new(layout.Engine)),
	),
)

// ConfigInput is the input of ProvideConfig.
type ConfigInput struct {
	fx.In
	Config *config.Config `name:"hosting" optional:"true"`
}

// Supply adds cfg to the graph as the hosting configuration.
func Supply(cfg *config.Config) fx.Option {
	return fx.Supply(fx.Annotated{Name: "hosting", Target: cfg})
}

// ProvideConfig returns the supplied configuration, or the defaults.
func ProvideConfig(in ConfigInput) (*config.Config, error) {
	if in.Config == nil {
		return config.Default(), nil
	}
	if err := in.Config.Validate(); err != nil {
		return nil, err
	}
	return in.Config, nil
}

// ProvideLogger builds the application logger from cfg.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return cfg.Logging.Build()
}

// MetricsInput is the input of ProvideMetrics.
type MetricsInput struct {
	fx.In
	Registerer prometheus.Registerer `optional:"true"`
}

// ProvideMetrics creates the hosting collectors, registered with the supplied
// registerer if there is one.
func ProvideMetrics(in MetricsInput) *metrics.Metrics {
	return metrics.New(in.Registerer)
}

// BridgeInput is the input of ProvideBridge.
type BridgeInput struct {
	fx.In
	Engine  layout.Engine
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// ProvideBridge installs the process-wide bridge for the engine. It fails
// with bridge.ErrOtherEngine if the process already bridged another engine.
func ProvideBridge(in BridgeInput) (*bridge.Bridge, error) {
	opts := in.Config.BridgeOptions(in.Logger.Named("engine"), in.Metrics)
	return bridge.Install(in.Engine, opts...)
}

// HostInput is the input of NewHost.
type HostInput struct {
	fx.In
	Engine     layout.Engine
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Bridge     *bridge.Bridge
	Dispatcher platform.Dispatcher `optional:"true"`
}

// Host creates controllers and surfaces that share the application's engine,
// bridge and configuration, and closes them when the application stops.
type Host struct {
	engine   layout.Engine
	registry *component.Registry
	logger   *zap.Logger
	opts     []hosting.SurfaceOption

	mu          sync.Mutex
	controllers []*hosting.Controller
	surfaces    []*hosting.Surface
}

// NewHost returns a Host bound to the application's stack.
func NewHost(in HostInput) *Host {
	opts := append(in.Config.SurfaceOptions(in.Logger, in.Metrics), hosting.WithBridge(in.Bridge))
	if in.Dispatcher != nil {
		opts = append(opts, hosting.WithDispatcher(in.Dispatcher))
	}
	return &Host{
		engine:   in.Engine,
		registry: component.NewRegistry(),
		logger:   in.Logger,
		opts:     opts,
	}
}

// Registry returns the provider table of the host's controllers.
func (h *Host) Registry() *component.Registry {
	return h.registry
}

// NewController creates a controller for factory inside container.
func (h *Host) NewController(factory component.Factory, container hosting.Container) *hosting.Controller {
	c := hosting.NewController(h.engine, factory, container,
		hosting.WithRegistry(h.registry),
		hosting.WithControllerLogger(h.logger),
		hosting.WithSurfaceOptions(h.opts...),
	)
	h.mu.Lock()
	h.controllers = append(h.controllers, c)
	h.mu.Unlock()
	return c
}

// NewSurface creates a standalone surface. Later options override the host's.
func (h *Host) NewSurface(opts ...hosting.SurfaceOption) *hosting.Surface {
	s := hosting.NewSurface(h.engine, append(append([]hosting.SurfaceOption(nil), h.opts...), opts...)...)
	h.mu.Lock()
	h.surfaces = append(h.surfaces, s)
	h.mu.Unlock()
	return s
}

// Close closes every controller and surface the host created.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	controllers, surfaces := h.controllers, h.surfaces
	h.controllers, h.surfaces = nil, nil
	h.mu.Unlock()

	var err error
	for _, c := range controllers {
		err = multierr.Append(err, c.Close(ctx))
	}
	for _, s := range surfaces {
		err = multierr.Append(err, s.Close())
		err = multierr.Append(err, s.Wait(ctx))
	}
	return err
}

type lifecycleInput struct {
	fx.In
	LC     fx.Lifecycle
	Config *config.Config
	Logger *zap.Logger
	Bridge *bridge.Bridge
	Host   *Host
}

func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			herrors.SetLogger(in.Logger)
			herrors.SetHandler(in.Config.ErrorHandler(in.Logger))
			in.Logger.Info("hosting started",
				zap.Bool("bridge_initialized", in.Bridge.Initialized()),
				zap.Int64("max_concurrent_layouts", in.Config.Surface.MaxConcurrentLayouts))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := in.Host.Close(ctx)
			herrors.SetHandler(nil)
			herrors.SetLogger(nil)
			_ = in.Logger.Sync()
			return err
		},
	})
}
