package app

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"opsflow/internal/config"
	"opsflow/internal/mcpserver"
	"opsflow/internal/server"
	"opsflow/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

// runServeMode starts the long-running surfaces and blocks until SIGINT,
// SIGTERM or ctx cancellation. SIGHUP reloads the workflow directory.
func runServeMode(ctx context.Context, cfg *config.OpsflowConfig, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	return serve(ctx, cfg, services, reload)
}

func serve(ctx context.Context, cfg *config.OpsflowConfig, services *Services, reload <-chan os.Signal) error {
	httpServer := server.NewServer(cfg.Server, services.Manager)
	if err := httpServer.Start(); err != nil {
		return err
	}

	var mcp *mcpserver.Server
	if cfg.MCP.Enabled {
		mcp = mcpserver.New(cfg.MCP, services.Manager)
		if err := mcp.Start(ctx); err != nil {
			_ = httpServer.Shutdown(context.Background())
			return err
		}
	}

	logging.Info("Serve", "Serving %d workflows. Press Ctrl+C to stop.", len(services.Manager.List()))

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case <-reload:
			reloadWorkflows(services, mcp)
		}
	}

	logging.Info("Serve", "--- Shutting down ---")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if mcp != nil {
		if err := mcp.Stop(shutdownCtx); err != nil {
			logging.Error("Serve", err, "Error stopping MCP server")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("Serve", err, "Error stopping HTTP server")
	}
	return nil
}

// reloadWorkflows re-reads the workflow directory and re-registers the MCP
// workflow tools. On error the previous definitions stay in place.
func reloadWorkflows(services *Services, mcp *mcpserver.Server) {
	if err := services.Manager.Reload(); err != nil {
		logging.Error("Serve", err, "Failed to reload workflows")
		return
	}
	for _, loadErr := range services.Storage.LoadErrors() {
		logging.Warn("Serve", "Skipped workflow definition: %v", loadErr)
	}
	if mcp != nil {
		mcp.Refresh()
		logging.Debug("Serve", "MCP workflow tools: %s", strings.Join(mcp.ToolNames(), ", "))
	}
	logging.Info("Serve", "Reloaded %d workflows", len(services.Manager.List()))
}
