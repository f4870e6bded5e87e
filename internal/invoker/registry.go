package invoker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"stepflow/internal/api"
	"stepflow/internal/config"
	"stepflow/pkg/logging"
)

// ToolSeparator splits "<server>/<tool>" ids.
const ToolSeparator = "/"

// Registry routes tool ids to builtins and MCP servers. It implements
// api.ToolInvoker and api.TTLProvider.
type Registry struct {
	builtins map[string]Builtin
	servers  map[string]*MCPServer
	ttls     map[string]time.Duration
}

var (
	_ api.ToolInvoker = (*Registry)(nil)
	_ api.TTLProvider = (*Registry)(nil)
)

// NewRegistry creates a registry holding the default builtins and nothing else.
func NewRegistry() *Registry {
	return &Registry{
		builtins: DefaultBuiltins(),
		servers:  make(map[string]*MCPServer),
		ttls:     make(map[string]time.Duration),
	}
}

// NewRegistryFromConfig creates a registry with the configured MCP servers
// and per-tool default TTLs.
func NewRegistryFromConfig(cfg config.Config) (*Registry, error) {
	r := NewRegistry()

	for _, serverCfg := range cfg.MCPServers {
		c, err := NewClient(serverCfg)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", serverCfg.Name, err)
		}
		timeout := serverCfg.Timeout
		if timeout == 0 {
			timeout = config.DefaultMCPTimeout
		}
		if err := r.AddServer(NewMCPServer(serverCfg.Name, c, timeout)); err != nil {
			return nil, err
		}
	}

	for toolID, toolCfg := range cfg.Tools {
		if toolCfg.DefaultTTL > 0 {
			r.SetDefaultTTL(toolID, toolCfg.DefaultTTL)
		}
	}

	logging.Debug("ToolRegistry", "Registered %d builtins and %d MCP servers", len(r.builtins), len(r.servers))
	return r, nil
}

// Register adds or replaces a builtin tool.
func (r *Registry) Register(name string, tool Builtin) {
	r.builtins[name] = tool
}

// AddServer registers an MCP server under its name.
func (r *Registry) AddServer(server *MCPServer) error {
	name := server.Name()
	if name == "" || strings.Contains(name, ToolSeparator) {
		return fmt.Errorf("invalid MCP server name %q", name)
	}
	if _, exists := r.servers[name]; exists {
		return fmt.Errorf("MCP server %s registered twice", name)
	}
	r.servers[name] = server
	return nil
}

// SetDefaultTTL sets the cache TTL used for toolID when a step gives none.
func (r *Registry) SetDefaultTTL(toolID string, ttl time.Duration) {
	r.ttls[toolID] = ttl
}

// DefaultTTL implements api.TTLProvider.
func (r *Registry) DefaultTTL(toolID string) (time.Duration, bool) {
	ttl, ok := r.ttls[toolID]
	return ttl, ok
}

// Known reports whether toolID routes somewhere. MCP tool names are not
// checked against the server's tool list.
func (r *Registry) Known(toolID string) bool {
	if _, ok := r.builtins[toolID]; ok {
		return true
	}
	server, tool, ok := splitToolID(toolID)
	if !ok {
		return false
	}
	_, exists := r.servers[server]
	return exists && tool != ""
}

// Builtins returns the sorted builtin tool names.
func (r *Registry) Builtins() []string {
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Servers returns the sorted MCP server names.
func (r *Registry) Servers() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunTool implements api.ToolInvoker. Builtins match by exact name first;
// otherwise the id is split at the first "/" into server and tool.
func (r *Registry) RunTool(ctx context.Context, toolID string, inputs interface{}) (*api.ToolResult, error) {
	if tool, ok := r.builtins[toolID]; ok {
		logging.Debug("ToolRegistry", "Running builtin %s", toolID)
		return tool(ctx, inputs)
	}

	serverName, tool, ok := splitToolID(toolID)
	if ok {
		if server, exists := r.servers[serverName]; exists {
			return server.CallTool(ctx, tool, inputs)
		}
	}
	return api.Failed(api.ErrCodeUnknownTool, fmt.Sprintf("unknown tool %q", toolID), nil), nil
}

// Close closes every MCP server connection.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.Servers() {
		if err := r.servers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func splitToolID(toolID string) (server, tool string, ok bool) {
	return strings.Cut(toolID, ToolSeparator)
}
