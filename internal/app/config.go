package app

import (
	"opsflow/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath names a single config file. Empty uses the layered
	// user and project configuration.
	ConfigPath string

	// LogLevel overrides logging.level when set.
	LogLevel string

	// WorkflowsDir overrides workflowsDir when set.
	WorkflowsDir string

	// Debug forces debug logging.
	Debug bool

	// Loaded configuration, filled in by NewApplication
	OpsflowConfig *config.OpsflowConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath, logLevel string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Debug:      debug,
	}
}

// applyOverrides copies command-line overrides onto the loaded configuration.
func (c *Config) applyOverrides(cfg *config.OpsflowConfig) {
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.Debug {
		cfg.Logging.Level = "debug"
	}
	if c.WorkflowsDir != "" {
		cfg.WorkflowsDir = c.WorkflowsDir
	}
}
