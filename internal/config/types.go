package config

import (
	"time"
)

// OpsflowConfig is the top-level configuration structure for opsflow.
type OpsflowConfig struct {
	Engine       EngineConfig       `yaml:"engine"`
	Logging      LoggingConfig      `yaml:"logging"`
	WorkflowsDir string             `yaml:"workflowsDir,omitempty"`
	Integrations IntegrationsConfig `yaml:"integrations"`
	Server       ServerConfig       `yaml:"server"`
	MCP          MCPConfig          `yaml:"mcp"`
	History      HistoryConfig      `yaml:"history"`
}

// EngineConfig tunes the workflow executor.
type EngineConfig struct {
	WorkerPoolSize int           `yaml:"workerPoolSize,omitempty"` // Concurrent async workflow runs (default: 5)
	BackoffBase    time.Duration `yaml:"backoffBase,omitempty"`    // Multiplied by the attempt number between retries (default: 1s)
	QueueSize      int           `yaml:"queueSize,omitempty"`      // Accepted async runs waiting for a worker (default: workerPoolSize)
	NoRetryOn      []string      `yaml:"noRetryOn,omitempty"`      // Failure messages containing any of these are not retried
}

// LoggingConfig selects the log level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// IntegrationsConfig holds per-integration connection settings. An integration
// whose required fields are empty is registered but reports itself unconfigured.
type IntegrationsConfig struct {
	GitHub     GitHubConfig     `yaml:"github"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// GitHubConfig configures the source-control integration.
type GitHubConfig struct {
	BaseURL  string `yaml:"baseURL,omitempty"`  // REST API root (default: https://api.github.com)
	Token    string `yaml:"token,omitempty"`    // Explicit token; prefer TokenEnv
	TokenEnv string `yaml:"tokenEnv,omitempty"` // Environment variable holding the token (default: GITHUB_TOKEN)
	Owner    string `yaml:"owner,omitempty"`    // Default repository owner
}

// KubernetesConfig configures the container-platform integration.
type KubernetesConfig struct {
	Kubeconfig string `yaml:"kubeconfig,omitempty"` // Path to kubeconfig; empty uses default loading rules
	Context    string `yaml:"context,omitempty"`    // Kube context to use; empty uses current context
	Namespace  string `yaml:"namespace,omitempty"`  // Default namespace for actions
	Enabled    bool   `yaml:"enabled,omitempty"`    // Whether to build a clientset at startup
}

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"` // Host to bind to (default: localhost)
	Port int    `yaml:"port,omitempty"` // Port to bind to (default: 8090)
}

// MCPConfig defines the MCP endpoint exposing workflows as tools.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"` // Host to bind to (default: localhost)
	Port    int    `yaml:"port,omitempty"` // Port for the SSE endpoint (default: 8091)
}

// History backends.
const (
	HistoryBackendMemory = "memory"
	HistoryBackendRedis  = "redis"
)

// HistoryConfig selects where completed workflow runs are recorded.
type HistoryConfig struct {
	Backend   string        `yaml:"backend,omitempty"`   // memory or redis
	RedisAddr string        `yaml:"redisAddr,omitempty"` // host:port of the redis server
	KeyPrefix string        `yaml:"keyPrefix,omitempty"` // Prefix for all history keys (default: opsflow)
	TTL       time.Duration `yaml:"ttl,omitempty"`       // Retention for run records (default: 168h)
}
