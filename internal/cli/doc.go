// Package cli renders engine values for the terminal and talks to a remote
// opsflow instance over MCP.
package cli
