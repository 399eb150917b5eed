package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/opsflow"
	projectConfigDir = ".opsflow"
	configFileName   = "config.yaml"
)

// LoadConfig loads the opsflow configuration by layering default, user, and project settings.
func LoadConfig() (OpsflowConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. Determine user-specific configuration path
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// Log this error but don't fail; user config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return OpsflowConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	// 3. Determine project-specific configuration path
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return OpsflowConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
		}
	}

	return config, nil
}

// LoadConfigFile loads the defaults overlaid with a single explicit file,
// skipping the user and project layers.
func LoadConfigFile(path string) (OpsflowConfig, error) {
	fileConfig, err := loadConfigFromFile(path)
	if err != nil {
		return OpsflowConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return mergeConfigs(GetDefaultConfig(), fileConfig), nil
}

var getUserConfigPath = func() (string, error) {
	dir, err := userConfigDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads an OpsflowConfig from a YAML file.
func loadConfigFromFile(filePath string) (OpsflowConfig, error) {
	var config OpsflowConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return OpsflowConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return OpsflowConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values in the
// overlay never clear a base value.
func mergeConfigs(base, overlay OpsflowConfig) OpsflowConfig {
	merged := base

	if overlay.Engine.WorkerPoolSize > 0 {
		merged.Engine.WorkerPoolSize = overlay.Engine.WorkerPoolSize
	}
	if overlay.Engine.BackoffBase > 0 {
		merged.Engine.BackoffBase = overlay.Engine.BackoffBase
	}
	if overlay.Engine.QueueSize > 0 {
		merged.Engine.QueueSize = overlay.Engine.QueueSize
	}
	if len(overlay.Engine.NoRetryOn) > 0 {
		merged.Engine.NoRetryOn = append([]string(nil), overlay.Engine.NoRetryOn...)
	}

	if overlay.Logging.Level != "" {
		merged.Logging.Level = overlay.Logging.Level
	}
	if overlay.Logging.Format != "" {
		merged.Logging.Format = overlay.Logging.Format
	}

	if overlay.WorkflowsDir != "" {
		merged.WorkflowsDir = overlay.WorkflowsDir
	}

	// Integrations
	gh := overlay.Integrations.GitHub
	if gh.BaseURL != "" {
		merged.Integrations.GitHub.BaseURL = gh.BaseURL
	}
	if gh.Token != "" {
		merged.Integrations.GitHub.Token = gh.Token
	}
	if gh.TokenEnv != "" {
		merged.Integrations.GitHub.TokenEnv = gh.TokenEnv
	}
	if gh.Owner != "" {
		merged.Integrations.GitHub.Owner = gh.Owner
	}

	k8s := overlay.Integrations.Kubernetes
	if k8s.Kubeconfig != "" {
		merged.Integrations.Kubernetes.Kubeconfig = k8s.Kubeconfig
	}
	if k8s.Context != "" {
		merged.Integrations.Kubernetes.Context = k8s.Context
	}
	if k8s.Namespace != "" {
		merged.Integrations.Kubernetes.Namespace = k8s.Namespace
	}
	if k8s.Enabled {
		merged.Integrations.Kubernetes.Enabled = true
	}

	// Listeners
	if overlay.Server.Host != "" {
		merged.Server.Host = overlay.Server.Host
	}
	if overlay.Server.Port != 0 {
		merged.Server.Port = overlay.Server.Port
	}
	if overlay.MCP.Enabled {
		merged.MCP.Enabled = true
	}
	if overlay.MCP.Host != "" {
		merged.MCP.Host = overlay.MCP.Host
	}
	if overlay.MCP.Port != 0 {
		merged.MCP.Port = overlay.MCP.Port
	}

	// History
	if overlay.History.Backend != "" {
		merged.History.Backend = overlay.History.Backend
	}
	if overlay.History.RedisAddr != "" {
		merged.History.RedisAddr = overlay.History.RedisAddr
	}
	if overlay.History.KeyPrefix != "" {
		merged.History.KeyPrefix = overlay.History.KeyPrefix
	}
	if overlay.History.TTL > 0 {
		merged.History.TTL = overlay.History.TTL
	}

	return merged
}

// userConfigDirPath returns the user configuration directory path
func userConfigDirPath() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// GitHubToken returns the explicit token, or the value of the configured
// environment variable when no explicit token is set.
func (c GitHubConfig) GitHubToken() string {
	if c.Token != "" {
		return c.Token
	}
	if c.TokenEnv != "" {
		return os.Getenv(c.TokenEnv)
	}
	return ""
}

// Validate reports configuration values that cannot be used at all.
func (c OpsflowConfig) Validate() error {
	if c.Engine.WorkerPoolSize < 1 {
		return fmt.Errorf("engine.workerPoolSize must be at least 1, got %d", c.Engine.WorkerPoolSize)
	}
	if c.Engine.QueueSize < 0 {
		return fmt.Errorf("engine.queueSize must not be negative, got %d", c.Engine.QueueSize)
	}
	switch c.History.Backend {
	case HistoryBackendMemory:
	case HistoryBackendRedis:
		if c.History.RedisAddr == "" {
			return fmt.Errorf("history.redisAddr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported history backend %q", c.History.Backend)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	return nil
}
