package invoker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/api"
	"stepflow/internal/config"
)

// fakeClient is an in-memory MCPClient.
type fakeClient struct {
	initErr   error
	callErr   error
	result    *mcp.CallToolResult
	inits     int
	closes    int
	lastTool  string
	lastArgs  map[string]interface{}
	connected bool
}

func (f *fakeClient) Initialize(context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	if !f.connected {
		f.inits++
		f.connected = true
	}
	return nil
}

func (f *fakeClient) Close() error {
	f.closes++
	f.connected = false
	return nil
}

func (f *fakeClient) ListTools(context.Context) ([]mcp.Tool, error) {
	return nil, nil
}

func (f *fakeClient) CallTool(_ context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.lastTool = name
	f.lastArgs = args
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func TestConvertResult(t *testing.T) {
	tests := []struct {
		name        string
		result      *mcp.CallToolResult
		wantSuccess bool
		wantData    interface{}
		wantMessage string
	}{
		{
			name:        "json text",
			result:      &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: `{"path":"/tmp/a.png"}`}}},
			wantSuccess: true,
			wantData:    map[string]interface{}{"path": "/tmp/a.png"},
		},
		{
			name:        "plain text",
			result:      &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "done"}}},
			wantSuccess: true,
			wantData:    "done",
		},
		{
			name: "structured content wins",
			result: &mcp.CallToolResult{
				Content:           []mcp.Content{mcp.TextContent{Type: "text", Text: "summary"}},
				StructuredContent: map[string]interface{}{"n": float64(3)},
			},
			wantSuccess: true,
			wantData:    map[string]interface{}{"n": float64(3)},
		},
		{
			name:        "empty",
			result:      &mcp.CallToolResult{},
			wantSuccess: true,
		},
		{
			name: "error flag",
			result: &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "page not found"}},
			},
			wantMessage: "page not found",
		},
		{
			name:        "error flag without text",
			result:      &mcp.CallToolResult{IsError: true},
			wantMessage: "tool reported an error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertResult(tt.result)
			assert.Equal(t, tt.wantSuccess, got.Success)
			if tt.wantSuccess {
				assert.Equal(t, tt.wantData, got.Data)
				return
			}
			require.NotNil(t, got.Error)
			assert.Equal(t, api.ErrCodeToolError, got.Error.Code)
			assert.Equal(t, tt.wantMessage, got.Error.Message)
		})
	}

	assert.False(t, ConvertResult(nil).Success)
}

func TestMCPServer_CallTool(t *testing.T) {
	fake := &fakeClient{result: &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: `"ok"`}},
	}}
	server := NewMCPServer("browser", fake, time.Second)

	result, err := server.CallTool(context.Background(), "navigate", map[string]interface{}{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, api.Succeeded("ok"), result)
	assert.Equal(t, "navigate", fake.lastTool)
	assert.Equal(t, "https://example.com", fake.lastArgs["url"])

	_, err = server.CallTool(context.Background(), "navigate", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.inits, "connection is reused")
	assert.Empty(t, fake.lastArgs)
}

func TestMCPServer_CallToolErrors(t *testing.T) {
	fake := &fakeClient{initErr: errors.New("connection refused")}
	server := NewMCPServer("browser", fake, 0)

	_, err := server.CallTool(context.Background(), "navigate", nil)
	assert.ErrorContains(t, err, "server browser unavailable")

	fake.initErr = nil
	fake.callErr = errors.New("broken pipe")
	_, err = server.CallTool(context.Background(), "navigate", nil)
	assert.ErrorContains(t, err, "browser/navigate")
	assert.Equal(t, 1, fake.closes, "failed calls drop the session")

	result, err := server.CallTool(context.Background(), "navigate", []interface{}{1})
	require.NoError(t, err)
	assert.Equal(t, api.ErrCodeInvalidInput, result.Error.Code)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MCPServerConfig
		wantErr string
	}{
		{name: "stdio", cfg: config.MCPServerConfig{Name: "a", Transport: config.MCPTransportStdio, Command: "server"}},
		{name: "http", cfg: config.MCPServerConfig{Name: "a", Transport: config.MCPTransportStreamableHTTP, URL: "http://localhost/mcp"}},
		{name: "sse", cfg: config.MCPServerConfig{Name: "a", Transport: config.MCPTransportSSE, URL: "http://localhost/sse"}},
		{name: "stdio without command", cfg: config.MCPServerConfig{Name: "a", Transport: config.MCPTransportStdio}, wantErr: "command is required"},
		{name: "http without url", cfg: config.MCPServerConfig{Name: "a", Transport: config.MCPTransportStreamableHTTP}, wantErr: "url is required"},
		{name: "unknown transport", cfg: config.MCPServerConfig{Name: "a", Transport: "carrier-pigeon"}, wantErr: "unsupported MCP transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, c.Close(), "closing an unconnected client is a no-op")
			_, err = c.ListTools(context.Background())
			assert.ErrorContains(t, err, "not connected")
		})
	}
}
