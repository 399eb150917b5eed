package cmd

import (
	"fmt"

	"opsflow/internal/capability"
	"opsflow/internal/cli"

	"github.com/spf13/cobra"
)

var (
	healthOutputFormat string
	healthRemote       string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of every integration",
	Long: `Runs a live health check against every registered integration.
Integrations without configuration are reported as not configured.

With --remote the report is fetched from a running 'opsflow serve'
through its MCP endpoint.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(healthOutputFormat)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	var health map[string]capability.HealthStatus
	if healthRemote != "" {
		client := cli.NewRemoteClient(healthRemote)
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", healthRemote, err)
		}
		defer client.Close()

		health, err = client.IntegrationHealth(ctx)
		if err != nil {
			return err
		}
	} else {
		application, err := newApplication(cmd)
		if err != nil {
			return err
		}
		defer application.Close()
		health = application.Services().Manager.IntegrationHealth(ctx)
	}

	return cli.NewRenderer(format, cmd.OutOrStdout()).RenderHealth(health)
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().StringVarP(&healthOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	healthCmd.Flags().StringVar(&healthRemote, "remote", "", "MCP endpoint of a running opsflow serve, e.g. http://localhost:8091")
}
