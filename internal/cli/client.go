package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"opsflow/internal/capability"
	"opsflow/internal/mcpserver"
	"opsflow/internal/workflow"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const defaultClientTimeout = 5 * time.Minute

// RemoteClient runs workflows on a serving opsflow instance through its MCP
// endpoint.
type RemoteClient struct {
	endpoint string
	client   *client.Client
	timeout  time.Duration
}

// NewRemoteClient creates a client for the MCP server at endpoint, e.g.
// http://localhost:8091. The /sse suffix is optional.
func NewRemoteClient(endpoint string) *RemoteClient {
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/sse") {
		endpoint += "/sse"
	}
	return &RemoteClient{
		endpoint: endpoint,
		timeout:  defaultClientTimeout,
	}
}

// Connect opens the SSE stream and performs the MCP handshake. ctx bounds
// the lifetime of the stream.
func (c *RemoteClient) Connect(ctx context.Context) error {
	sseClient, err := client.NewSSEMCPClient(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to create sse client: %w", err)
	}

	if err := sseClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sse client: %w", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = "2024-11-05"
	req.Params.ClientInfo = mcp.Implementation{
		Name:    "opsflow-cli",
		Version: "1.0.0",
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := sseClient.Initialize(initCtx, req); err != nil {
		_ = sseClient.Close()
		return fmt.Errorf("initialization failed: %w", err)
	}

	c.client = sseClient
	return nil
}

// RunWorkflow runs a stored workflow remotely. A run that finished with
// failed steps is returned without error; the tool's error flag only
// matters when the body is not a result.
func (c *RemoteClient) RunWorkflow(ctx context.Context, id string, vars map[string]interface{}) (workflow.WorkflowResult, error) {
	text, _, err := c.callTool(ctx, mcpserver.WorkflowToolPrefix+id, vars)
	if err != nil {
		return workflow.WorkflowResult{}, err
	}

	var result workflow.WorkflowResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return workflow.WorkflowResult{}, fmt.Errorf("workflow %s: %s", id, text)
	}
	return result, nil
}

// IntegrationHealth fetches the remote health report.
func (c *RemoteClient) IntegrationHealth(ctx context.Context) (map[string]capability.HealthStatus, error) {
	text, isError, err := c.callTool(ctx, mcpserver.ToolIntegrationHealth, nil)
	if err != nil {
		return nil, err
	}
	if isError {
		return nil, fmt.Errorf("tool error: %s", text)
	}

	health := map[string]capability.HealthStatus{}
	if err := json.Unmarshal([]byte(text), &health); err != nil {
		return nil, fmt.Errorf("failed to parse health report: %w", err)
	}
	return health, nil
}

// Close closes the connection
func (c *RemoteClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *RemoteClient) callTool(ctx context.Context, name string, args map[string]interface{}) (string, bool, error) {
	if c.client == nil {
		return "", false, fmt.Errorf("client not connected")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.CallTool(timeoutCtx, req)
	if err != nil {
		return "", false, fmt.Errorf("tool call failed: %w", err)
	}

	var texts []string
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, textContent.Text)
		}
	}
	return strings.Join(texts, "\n"), result.IsError, nil
}
