// Package config loads the optional hosting.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/hosting/pkg/bridge"
	herrors "github.com/go-drift/hosting/pkg/errors"
	"github.com/go-drift/hosting/pkg/hosting"
	"github.com/go-drift/hosting/pkg/layout"
	"github.com/go-drift/hosting/pkg/metrics"
)

// FileName is the configuration file LoadOptional looks for.
const FileName = "hosting.yaml"

// Config represents hosting.yaml.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Surface SurfaceConfig `yaml:"surface"`
	Errors  ErrorsConfig  `yaml:"errors"`
	Bridge  BridgeConfig  `yaml:"bridge"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// SurfaceConfig configures hosted surfaces.
type SurfaceConfig struct {
	// MaxConcurrentLayouts bounds asynchronous computations per surface.
	// Engine calls made through the bridge still run one at a time.
	MaxConcurrentLayouts int64 `yaml:"max_concurrent_layouts,omitempty"`
	PauseWhenHidden      bool  `yaml:"pause_when_hidden"`
}

// ErrorsConfig configures the error handler.
type ErrorsConfig struct {
	Verbose bool `yaml:"verbose,omitempty"`
}

// BridgeConfig configures the layout engine logger bridge.
type BridgeConfig struct {
	// MinLevel is the lowest engine severity written to the application log.
	MinLevel string `yaml:"min_level,omitempty"`
}

// Default returns the configuration used when hosting.yaml is absent.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Surface: SurfaceConfig{
			MaxConcurrentLayouts: 1,
			PauseWhenHidden:      true,
		},
		Bridge: BridgeConfig{MinLevel: "debug"},
	}
}

// LoadOptional reads hosting.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", FileName, err)
	}
	return Load(path)
}

// Load reads and validates the configuration at path. Keys the file omits
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and level names.
func (c *Config) Validate() error {
	if _, err := c.Logging.level(); err != nil {
		return err
	}
	if _, err := c.Bridge.Level(); err != nil {
		return err
	}
	if c.Surface.MaxConcurrentLayouts < 0 {
		return fmt.Errorf("surface.max_concurrent_layouts must not be negative, got %d", c.Surface.MaxConcurrentLayouts)
	}
	return nil
}

// Build constructs the application logger.
func (l LoggingConfig) Build() (*zap.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func (l LoggingConfig) level() (zapcore.Level, error) {
	name := strings.TrimSpace(l.Level)
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return level, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Level parses MinLevel.
func (b BridgeConfig) Level() (layout.Level, error) {
	level, err := layout.ParseLevel(strings.TrimSpace(b.MinLevel))
	if err != nil {
		return level, fmt.Errorf("bridge.min_level: %w", err)
	}
	return level, nil
}

// BridgeOptions returns the bridge options the configuration selects.
func (c *Config) BridgeOptions(logger *zap.Logger, m *metrics.Metrics) []bridge.Option {
	opts := []bridge.Option{bridge.WithLogger(logger), bridge.WithMetrics(m)}
	if level, err := c.Bridge.Level(); err == nil {
		opts = append(opts, bridge.WithMinLevel(level))
	}
	return opts
}

// SurfaceOptions returns the surface options the configuration selects.
func (c *Config) SurfaceOptions(logger *zap.Logger, m *metrics.Metrics) []hosting.SurfaceOption {
	return []hosting.SurfaceOption{
		hosting.WithLogger(logger),
		hosting.WithMetrics(m),
		hosting.WithMaxConcurrentLayouts(c.Surface.MaxConcurrentLayouts),
		hosting.WithPauseWhenHidden(c.Surface.PauseWhenHidden),
	}
}

// ErrorHandler returns the handler the configuration selects.
func (c *Config) ErrorHandler(logger *zap.Logger) herrors.ErrorHandler {
	return &herrors.LogHandler{Verbose: c.Errors.Verbose, Logger: logger}
}
