package config

import "time"

const (
	// DefaultBackoffBase is the delay before the first retry.
	DefaultBackoffBase = time.Second

	// DefaultRedisAddr is used when the redis backend has no address.
	DefaultRedisAddr = "localhost:6379"

	// DefaultRedisPrefix prefixes every redis cache hash.
	DefaultRedisPrefix = "stepflow:cache:"

	// DefaultMCPTimeout bounds a single MCP tool call.
	DefaultMCPTimeout = 60 * time.Second
)

// GetDefaultConfig returns the configuration used when config.yaml is absent.
func GetDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Runner: RunnerConfig{
			BackoffBase: DefaultBackoffBase,
		},
		Cache: CacheConfig{
			Backend: CacheBackendFile,
			Redis: RedisConfig{
				Addr:   DefaultRedisAddr,
				Prefix: DefaultRedisPrefix,
			},
		},
	}
}
