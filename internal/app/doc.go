// Package app bootstraps opsflow: it loads configuration, initializes
// logging, wires the integrations into the engine and runs the serve mode.
package app
