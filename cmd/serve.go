package cmd

import (
	"github.com/spf13/cobra"
)

// serveCmd starts the long-running HTTP API and, when enabled in the
// configuration, the MCP endpoint.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workflows over HTTP and MCP",
	Long: `Starts the opsflow HTTP API and, when mcp.enabled is set, the MCP
endpoint that exposes every workflow as a tool named workflow_<id>.

HTTP endpoints:
  GET  /healthz                  liveness
  GET  /integrations/health      live integration health
  GET  /workflows                list workflow definitions
  GET  /workflows/<id>           get one definition
  POST /workflows/<id>/run       run a workflow ({"variables": {...}, "async": false})
  GET  /workflows/<id>/runs      recorded runs, newest first
  GET  /runs/<runId>             one recorded run

The server runs until interrupted (Ctrl+C).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(commandContext(cmd))
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
