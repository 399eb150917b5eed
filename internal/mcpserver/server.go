package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"opsflow/internal/capability"
	"opsflow/internal/config"
	"opsflow/internal/history"
	"opsflow/internal/workflow"
	"opsflow/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// WorkflowToolPrefix is prepended to a workflow id to form its tool name.
	WorkflowToolPrefix = "workflow_"

	ToolIntegrationHealth = "integration_health"
	ToolListWorkflows     = "list_workflows"
	ToolGetRun            = "get_run"

	serverName    = "opsflow"
	serverVersion = "1.0.0"
)

// WorkflowSource is the part of the workflow manager the MCP server needs.
type WorkflowSource interface {
	List() []workflow.Workflow
	Run(ctx context.Context, id string, vars map[string]interface{}) (workflow.WorkflowResult, error)
	GetRun(ctx context.Context, runID string) (history.Record, error)
	IntegrationHealth(ctx context.Context) map[string]capability.HealthStatus
}

// Server exposes stored workflows as MCP tools over SSE.
type Server struct {
	config config.MCPConfig
	source WorkflowSource
	mcp    *server.MCPServer

	mu            sync.Mutex
	workflowTools []string
	sseServer     *server.SSEServer
}

// New creates the MCP server and registers the current workflow set.
func New(cfg config.MCPConfig, source WorkflowSource) *Server {
	s := &Server{
		config: cfg,
		source: source,
		mcp: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(true),
		),
	}

	s.mcp.AddTools(s.managementTools()...)
	s.Refresh()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Refresh replaces the workflow tools with one tool per stored workflow.
func (s *Server) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.workflowTools) > 0 {
		s.mcp.DeleteTools(s.workflowTools...)
	}

	tools := s.workflowServerTools()
	s.workflowTools = make([]string, 0, len(tools))
	for _, t := range tools {
		s.workflowTools = append(s.workflowTools, t.Tool.Name)
	}
	if len(tools) > 0 {
		s.mcp.AddTools(tools...)
	}
	logging.Debug("MCPServer", "Registered %d workflow tools", len(tools))
}

// ToolNames lists the workflow tools currently registered.
func (s *Server) ToolNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.workflowTools...)
}

// Start binds the listen address and serves the SSE transport in the
// background. A failure to bind is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sseServer != nil {
		return fmt.Errorf("mcp server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	addr = ln.Addr().String()

	httpServer := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
	}
	sseServer := server.NewSSEServer(
		s.mcp,
		server.WithHTTPServer(httpServer),
		server.WithBaseURL("http://"+addr),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)
	httpServer.Handler = sseServer
	s.sseServer = sseServer

	logging.Info("MCPServer", "Serving MCP on %s", addr)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("MCPServer", err, "SSE server error")
		}
	}()
	return nil
}

// Stop shuts the SSE transport down. Stopping a server that was never
// started is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sseServer := s.sseServer
	s.sseServer = nil
	s.mu.Unlock()

	if sseServer == nil {
		return nil
	}

	logging.Info("MCPServer", "Stopping MCP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sseServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down mcp server: %w", err)
	}
	return nil
}

func (s *Server) workflowServerTools() []server.ServerTool {
	workflows := s.source.List()
	tools := make([]server.ServerTool, 0, len(workflows))
	for _, wf := range workflows {
		tools = append(tools, server.ServerTool{
			Tool:    workflowTool(wf),
			Handler: s.runWorkflowHandler(wf.ID),
		})
	}
	return tools
}

// workflowTool describes wf as a tool whose string arguments are the
// context keys the workflow reads but never writes.
func workflowTool(wf workflow.Workflow) mcp.Tool {
	description := wf.Description
	if description == "" {
		description = fmt.Sprintf("Run workflow %s", wf.Name)
	}

	opts := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, key := range workflow.InputKeys(wf) {
		opts = append(opts, mcp.WithString(key,
			mcp.Description(fmt.Sprintf("Value for ${%s}", key)),
		))
	}
	return mcp.NewTool(WorkflowToolPrefix+wf.ID, opts...)
}

func (s *Server) runWorkflowHandler(workflowID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		vars := req.GetArguments()
		if vars == nil {
			vars = map[string]interface{}{}
		}

		result, err := s.source.Run(ctx, workflowID, vars)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Workflow execution failed: %v", err)), nil
		}

		toolResult, err := jsonResult(result)
		if err != nil {
			return nil, err
		}
		toolResult.IsError = !result.Success
		return toolResult, nil
	}
}

func (s *Server) managementTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolIntegrationHealth,
				mcp.WithDescription("Report the live health of every registered integration"),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return jsonResult(s.source.IntegrationHealth(ctx))
			},
		},
		{
			Tool: mcp.NewTool(ToolListWorkflows,
				mcp.WithDescription("List the stored workflow definitions"),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return jsonResult(s.source.List())
			},
		},
		{
			Tool: mcp.NewTool(ToolGetRun,
				mcp.WithDescription("Fetch the recorded outcome of a workflow run"),
				mcp.WithString("runId",
					mcp.Required(),
					mcp.Description("Run id returned by a workflow tool"),
				),
			),
			Handler: s.handleGetRun,
		},
	}
}

func (s *Server) handleGetRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, _ := req.GetArguments()["runId"].(string)
	if strings.TrimSpace(runID) == "" {
		return mcp.NewToolResultError("runId is required"), nil
	}

	rec, err := s.source.GetRun(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get run: %v", err)), nil
	}
	return jsonResult(rec)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
