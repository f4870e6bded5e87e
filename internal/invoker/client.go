package invoker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"stepflow/internal/config"
	"stepflow/pkg/logging"
)

// DefaultInitTimeout bounds connection setup when the caller's context has
// no deadline. It covers process start for stdio servers and the handshake.
const DefaultInitTimeout = 10 * time.Second

const protocolVersion = "2024-11-05"

// MCPClient is the subset of an MCP session used to run tools.
type MCPClient interface {
	// Initialize establishes the connection and performs the protocol handshake.
	Initialize(ctx context.Context) error
	// Close shuts the connection down. A closed client can be initialized again.
	Close() error
	// ListTools returns the tools the server offers.
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	// CallTool executes a tool on the server.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

var _ MCPClient = (*Client)(nil)

type dialFunc func(ctx context.Context) (client.MCPClient, error)

// Client is an MCPClient for any supported transport.
type Client struct {
	name      string
	transport string
	dial      dialFunc

	mu        sync.RWMutex
	client    client.MCPClient
	connected bool
}

// NewClient creates a client for the configured server. No connection is
// made until Initialize.
func NewClient(cfg config.MCPServerConfig) (*Client, error) {
	c := &Client{name: cfg.Name, transport: cfg.Transport}

	switch cfg.Transport {
	case config.MCPTransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		c.dial = stdioDialer(cfg)
	case config.MCPTransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("url is required for streamable-http transport")
		}
		c.dial = streamableHTTPDialer(cfg)
	case config.MCPTransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("url is required for sse transport")
		}
		c.dial = sseDialer(cfg)
	default:
		return nil, fmt.Errorf("unsupported MCP transport: %s (supported: %s, %s, %s)",
			cfg.Transport, config.MCPTransportStdio, config.MCPTransportStreamableHTTP, config.MCPTransportSSE)
	}
	return c, nil
}

func stdioDialer(cfg config.MCPServerConfig) dialFunc {
	return func(context.Context) (client.MCPClient, error) {
		var env []string
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		logging.Debug("MCPInvoker", "Starting stdio server %s: %s %v", cfg.Name, cfg.Command, cfg.Args)
		mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdio client: %w", err)
		}
		return mcpClient, nil
	}
}

func streamableHTTPDialer(cfg config.MCPServerConfig) dialFunc {
	return func(context.Context) (client.MCPClient, error) {
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		logging.Debug("MCPInvoker", "Creating streamable-http client for %s at %s", cfg.Name, cfg.URL)
		mcpClient, err := client.NewStreamableHttpClient(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable-http client: %w", err)
		}
		return mcpClient, nil
	}
}

func sseDialer(cfg config.MCPServerConfig) dialFunc {
	return func(ctx context.Context) (client.MCPClient, error) {
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		logging.Debug("MCPInvoker", "Creating SSE client for %s at %s", cfg.Name, cfg.URL)
		mcpClient, err := client.NewSSEMCPClient(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE client: %w", err)
		}
		if err := mcpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start SSE transport: %w", err)
		}
		return mcpClient, nil
	}
}

// Initialize establishes the connection and performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, DefaultInitTimeout)
		defer cancel()
	}

	mcpClient, err := c.dial(initCtx)
	if err != nil {
		return err
	}

	initResult, err := mcpClient.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "stepflow",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		if closeErr := mcpClient.Close(); closeErr != nil {
			logging.Debug("MCPInvoker", "Error closing failed client for %s: %v", c.name, closeErr)
		}
		return fmt.Errorf("failed to initialize MCP protocol with %s: %w", c.name, err)
	}

	c.client = mcpClient
	c.connected = true

	logging.Debug("MCPInvoker", "Connected to %s over %s. Server: %s, Version: %s",
		c.name, c.transport, initResult.ServerInfo.Name, initResult.ServerInfo.Version)
	return nil
}

// Close cleanly shuts down the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.connected = false
	c.client = nil
	return err
}

// checkConnected must be called with at least a read lock held.
func (c *Client) checkConnected() error {
	if !c.connected || c.client == nil {
		return fmt.Errorf("client for %s not connected", c.name)
	}
	return nil
}

// ListTools returns all available tools from the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool executes a specific tool and returns the result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}
	return result, nil
}
