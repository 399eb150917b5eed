package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"opsflow/internal/app"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "opsflow",
	Short: "Run declarative operations workflows",
	Long: `opsflow runs declarative workflows: ordered steps that call actions on
integrations such as GitHub and Kubernetes, sharing values through a run
context with retries, conditions and failure policies.

Workflows are loaded from the workflows directory (.opsflow/workflows by
default) and can be run from the command line, over the HTTP API or as MCP
tools while 'opsflow serve' is running.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed runs)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// SIGINT and SIGTERM cancel the command context, which stops a running
// workflow between steps or during a retry backoff.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "opsflow version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is layered ~/.config/opsflow/config.yaml and .opsflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// newApplication bootstraps the engine from the persistent flags.
func newApplication(cmd *cobra.Command) (*app.Application, error) {
	cfg := app.NewConfig(configPath, logLevel, debug)
	application, err := app.NewApplication(commandContext(cmd), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
