package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"stepflow/internal/api"
	"stepflow/pkg/logging"
)

// MCPServer runs tools on one MCP server, connecting lazily on first use.
type MCPServer struct {
	name    string
	client  MCPClient
	timeout time.Duration
}

// NewMCPServer wraps client. A zero timeout leaves calls bounded only by
// the caller's context.
func NewMCPServer(name string, client MCPClient, timeout time.Duration) *MCPServer {
	return &MCPServer{name: name, client: client, timeout: timeout}
}

// Name returns the server name used as tool id prefix.
func (s *MCPServer) Name() string {
	return s.name
}

// CallTool runs tool with inputs and converts the MCP result into an envelope.
func (s *MCPServer) CallTool(ctx context.Context, tool string, inputs interface{}) (*api.ToolResult, error) {
	args, err := objectInputs(inputs)
	if err != nil {
		return api.Failed(api.ErrCodeInvalidInput, err.Error(), nil), nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.client.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("server %s unavailable: %w", s.name, err)
	}

	start := time.Now()
	result, err := s.client.CallTool(ctx, tool, args)
	if err != nil {
		// Drop the session so the next call reconnects.
		if closeErr := s.client.Close(); closeErr != nil {
			logging.Debug("MCPInvoker", "Error closing %s after failed call: %v", s.name, closeErr)
		}
		return nil, fmt.Errorf("%s/%s: %w", s.name, tool, err)
	}
	logging.Debug("MCPInvoker", "Called %s/%s in %s", s.name, tool, logging.Since(start))

	return ConvertResult(result), nil
}

// Close closes the underlying client.
func (s *MCPServer) Close() error {
	return s.client.Close()
}

// ConvertResult maps an MCP CallToolResult onto the tool envelope.
func ConvertResult(result *mcp.CallToolResult) *api.ToolResult {
	if result == nil {
		return api.Failed(api.ErrCodeInvocation, "server returned no result", nil)
	}

	text := textContent(result.Content)
	var data interface{}
	if result.StructuredContent != nil {
		data = result.StructuredContent
	} else if text != "" {
		data = parseText(text)
	}

	if result.IsError {
		message := text
		if message == "" {
			message = "tool reported an error"
		}
		var details interface{}
		if result.StructuredContent != nil {
			details = result.StructuredContent
		}
		return api.Failed(api.ErrCodeToolError, message, details)
	}
	return api.Succeeded(data)
}

func textContent(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// parseText returns text decoded as JSON when it is valid JSON, otherwise
// the text itself.
func parseText(text string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}
