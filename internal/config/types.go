package config

import "time"

// Config is the top-level configuration structure read from config.yaml.
type Config struct {
	Logging    LoggingConfig         `yaml:"logging"`
	Runner     RunnerConfig          `yaml:"runner"`
	Cache      CacheConfig           `yaml:"cache"`
	Events     EventsConfig          `yaml:"events"`
	Tools      map[string]ToolConfig `yaml:"tools,omitempty"`
	MCPServers []MCPServerConfig     `yaml:"mcpServers,omitempty"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn or error (default: info)
	Format string `yaml:"format,omitempty"` // text or json (default: text)
}

// RunnerConfig tunes the workflow runner.
type RunnerConfig struct {
	// BackoffBase is multiplied by 2^retryCount between attempts (default: 1s).
	BackoffBase time.Duration `yaml:"backoffBase,omitempty"`
	// RecordHistory stores every finished run under <configPath>/runs (default: true).
	RecordHistory *bool `yaml:"recordHistory,omitempty"`
}

// EventsConfig selects where lifecycle events are written besides the log.
type EventsConfig struct {
	// File appends every event as a JSON line; relative paths are resolved
	// against the config directory.
	File string `yaml:"file,omitempty"`
	// Verbose logs step level events at info instead of debug.
	Verbose bool `yaml:"verbose,omitempty"`
}

// CacheBackend names the persistent tier implementation.
type CacheBackend string

const (
	// CacheBackendMemory keeps entries in memory only.
	CacheBackendMemory CacheBackend = "memory"
	// CacheBackendFile stores one JSON file per entry.
	CacheBackendFile CacheBackend = "file"
	// CacheBackendRedis stores one hash per workflow in Redis.
	CacheBackendRedis CacheBackend = "redis"
)

// CacheBackends lists every accepted cache backend.
var CacheBackends = []string{string(CacheBackendMemory), string(CacheBackendFile), string(CacheBackendRedis)}

// CacheConfig configures the step output cache.
type CacheConfig struct {
	Backend   CacheBackend `yaml:"backend,omitempty"`   // memory, file or redis (default: file)
	Directory string       `yaml:"directory,omitempty"` // file backend root (default: <configPath>/cache)
	Watch     bool         `yaml:"watch,omitempty"`     // evict memory entries removed from disk by other processes
	Redis     RedisConfig  `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"` // default: localhost:6379
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"` // key prefix (default: stepflow:cache:)
}

// ToolConfig holds per-tool settings.
type ToolConfig struct {
	// DefaultTTL applies to cached outputs of the tool when a step sets no TTL.
	DefaultTTL time.Duration `yaml:"defaultTTL,omitempty"`
}

const (
	// MCPTransportStreamableHTTP is the streamable HTTP transport.
	MCPTransportStreamableHTTP = "streamable-http"
	// MCPTransportSSE is the Server-Sent Events transport.
	MCPTransportSSE = "sse"
	// MCPTransportStdio is the standard I/O transport.
	MCPTransportStdio = "stdio"
)

// MCPTransports lists every accepted MCP transport.
var MCPTransports = []string{MCPTransportStdio, MCPTransportStreamableHTTP, MCPTransportSSE}

// MCPServerConfig describes an MCP server whose tools are reachable as
// "<name>/<tool>" tool ids.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command,omitempty"` // stdio only
	Args      []string          `yaml:"args,omitempty"`    // stdio only
	Env       map[string]string `yaml:"env,omitempty"`     // stdio only
	URL       string            `yaml:"url,omitempty"`     // streamable-http and sse
	Headers   map[string]string `yaml:"headers,omitempty"` // streamable-http and sse
	Timeout   time.Duration     `yaml:"timeout,omitempty"` // per tool call (default: 60s)
}

// ShouldRecordHistory reports whether finished runs are written to disk.
func (r RunnerConfig) ShouldRecordHistory() bool {
	return r.RecordHistory == nil || *r.RecordHistory
}
