// Package mcpserver publishes stored workflows to MCP clients.
//
// Every workflow becomes a tool named workflow_<id> whose string arguments
// are the workflow's input keys. Calling the tool runs the workflow and
// returns the JSON encoded result, flagged as an error when the run failed.
// A few management tools report integration health, list workflows and fetch
// recorded runs.
package mcpserver
