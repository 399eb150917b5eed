package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultWorkerPoolSize = 5
	DefaultBackoffBase    = time.Second
	DefaultServerPort     = 8090
	DefaultMCPPort        = 8091
	DefaultGitHubBaseURL  = "https://api.github.com"
	DefaultGitHubTokenEnv = "GITHUB_TOKEN"
	DefaultHistoryTTL     = 7 * 24 * time.Hour
)

// GetDefaultConfig returns minimal default configuration.
// By default: in-memory history, no kubernetes clientset, MCP endpoint disabled.
func GetDefaultConfig() OpsflowConfig {
	return OpsflowConfig{
		Engine: EngineConfig{
			WorkerPoolSize: DefaultWorkerPoolSize,
			BackoffBase:    DefaultBackoffBase,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		WorkflowsDir: filepath.Join(projectConfigDir, "workflows"),
		Integrations: IntegrationsConfig{
			GitHub: GitHubConfig{
				BaseURL:  DefaultGitHubBaseURL,
				TokenEnv: DefaultGitHubTokenEnv,
			},
			Kubernetes: KubernetesConfig{
				Namespace: "default",
			},
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: DefaultServerPort,
		},
		MCP: MCPConfig{
			Host: "localhost",
			Port: DefaultMCPPort,
		},
		History: HistoryConfig{
			Backend:   HistoryBackendMemory,
			KeyPrefix: "opsflow",
			TTL:       DefaultHistoryTTL,
		},
	}
}
