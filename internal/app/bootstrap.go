package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"opsflow/internal/config"
	"opsflow/pkg/logging"
)

// Application is the main application structure that bootstraps and runs opsflow
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and wires the
// engine services.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	return newApplication(ctx, cfg, os.Stderr)
}

func newApplication(ctx context.Context, cfg *Config, logOutput io.Writer) (*Application, error) {
	opsflowCfg, err := loadConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyOverrides(&opsflowCfg)
	if err := opsflowCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.OpsflowConfig = &opsflowCfg

	logging.Init(opsflowCfg.Logging.Format, logging.ParseLevel(opsflowCfg.Logging.Level), logOutput)
	if cfg.ConfigPath != "" {
		logging.Debug("Bootstrap", "Loaded configuration from %s", cfg.ConfigPath)
	} else {
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}

	services, err := InitializeServices(ctx, &opsflowCfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func loadConfig(cfg *Config) (config.OpsflowConfig, error) {
	if cfg.ConfigPath != "" {
		loaded, err := config.LoadConfigFile(cfg.ConfigPath)
		if err != nil {
			return config.OpsflowConfig{}, fmt.Errorf("failed to load opsflow configuration from path %s: %w", cfg.ConfigPath, err)
		}
		return loaded, nil
	}

	loaded, err := config.LoadConfig()
	if err != nil {
		return config.OpsflowConfig{}, fmt.Errorf("failed to load opsflow configuration: %w", err)
	}
	return loaded, nil
}

// Services returns the wired engine services.
func (a *Application) Services() *Services {
	return a.services
}

// Config returns the effective configuration.
func (a *Application) Config() config.OpsflowConfig {
	return *a.config.OpsflowConfig
}

// Serve runs the HTTP API, and the MCP endpoint when enabled, until an
// interrupt signal arrives or ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	return runServeMode(ctx, a.config.OpsflowConfig, a.services)
}

// Close stops the engine and releases the history store.
func (a *Application) Close() error {
	return a.services.Close()
}
