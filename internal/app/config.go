package app

import (
	"io"

	"stepflow/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// Silent discards log output.
	Silent bool

	// ConfigPath is the configuration directory. Empty means the user
	// config directory (~/.config/stepflow).
	ConfigPath string

	// LogOutput receives log lines (default: stderr).
	LogOutput io.Writer

	// Stepflow is the loaded config.yaml, filled in by NewApplication.
	Stepflow *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
