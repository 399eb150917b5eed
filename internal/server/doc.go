// Package server provides the HTTP API of the serve mode: listing workflows,
// starting runs, reading run history and reporting integration health.
package server
