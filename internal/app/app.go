package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vk/flowplan/internal/config"
	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/fsutil"
	"github.com/vk/flowplan/internal/hcl"
	"github.com/vk/flowplan/internal/metrics"
	"github.com/vk/flowplan/internal/yamlconf"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	loader   config.Loader
	registry *prometheus.Registry
	metrics  *metrics.Planner
}

// NewApp is the constructor for the main application. Plan reports go to
// outW and logs to logW. A nil loader picks one from the configured format.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	if loader == nil {
		var err error
		loader, err = LoaderFor(cfg)
		if err != nil {
			return nil, err
		}
	}

	// Each app gets its own registry so tests and embedded use never collide
	// on the global one.
	reg := prometheus.NewRegistry()
	planner, err := metrics.NewPlanner(reg)
	if err != nil {
		return nil, err
	}

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		loader:   loader,
		registry: reg,
		metrics:  planner,
	}, nil
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Context returns ctx carrying the application's logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// LoaderFor returns the definition loader for the configured format. In
// auto mode the format is taken from the files found under the definition
// paths; mixing HCL and YAML there is an error.
func LoaderFor(cfg *Config) (config.Loader, error) {
	format := cfg.Format
	if format == FormatAuto {
		hclFiles, err := fsutil.FindFiles(cfg.DefinitionPaths, hcl.Extension)
		if err != nil {
			return nil, err
		}
		yamlFiles, err := fsutil.FindFiles(cfg.DefinitionPaths, yamlconf.Extensions...)
		if err != nil {
			return nil, err
		}

		switch {
		case len(hclFiles) > 0 && len(yamlFiles) > 0:
			return nil, errors.New("definition paths mix HCL and YAML files; choose one with --format")
		case len(yamlFiles) > 0:
			format = FormatYAML
		case len(hclFiles) > 0:
			format = FormatHCL
		default:
			return nil, fmt.Errorf("no definition files found in %v", cfg.DefinitionPaths)
		}
	}

	if format == FormatYAML {
		return yamlconf.NewLoader(cfg.Vars), nil
	}
	return hcl.NewLoader(cfg.Vars), nil
}
