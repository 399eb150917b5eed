// Package config provides configuration management for opsflow.
//
// This package implements a layered configuration system. Configuration is
// loaded from multiple sources and merged in a specific order, with later
// sources overriding earlier ones.
//
// # Configuration Layers
//
//  1. Default Configuration (embedded in binary)
//  2. User Configuration (~/.config/opsflow/config.yaml)
//  3. Project Configuration (./.opsflow/config.yaml)
//
// A value that is empty or zero in a later layer never clears an earlier one.
//
// # Configuration Structure
//
//	engine:
//	  workerPoolSize: 5
//	  backoffBase: 1s
//	  queueSize: 10
//	  noRetryOn: ["Bad credentials"]
//	logging:
//	  level: info
//	  format: text
//	workflowsDir: .opsflow/workflows
//	integrations:
//	  github:
//	    owner: my-org
//	    tokenEnv: GITHUB_TOKEN
//	  kubernetes:
//	    enabled: true
//	    context: staging
//	    namespace: apps
//	server:
//	  port: 8090
//	mcp:
//	  enabled: true
//	  port: 8091
//	history:
//	  backend: redis
//	  redisAddr: localhost:6379
//	  ttl: 168h
package config
