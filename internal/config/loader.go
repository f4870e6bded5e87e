package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stepflow/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/stepflow"
	configFileName = "config.yaml"

	// WorkflowsDir holds workflow definitions inside the config directory.
	WorkflowsDir = "workflows"
	// RunsDir holds run history inside the config directory.
	RunsDir = "runs"
	// CacheDir is the default file cache root inside the config directory.
	CacheDir = "cache"
)

// GetUserConfigDir returns ~/.config/stepflow.
func GetUserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

func GetDefaultConfigPathOrPanic() string {
	dir, err := GetUserConfigDir()
	if err != nil {
		panic(err)
	}
	return dir
}

// LoadConfig loads config.yaml from configPath on top of the defaults.
// A missing file is not an error.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, fmt.Errorf("failed to read %s: %w", configFilePath, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, FormatValidationError("config", configFilePath, err)
	}

	if config.Cache.Directory == "" {
		config.Cache.Directory = filepath.Join(configPath, CacheDir)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// ResolveCacheDir returns the file cache root for cfg, defaulting to
// <configPath>/cache.
func ResolveCacheDir(cfg Config, configPath string) string {
	if cfg.Cache.Directory != "" {
		return cfg.Cache.Directory
	}
	return filepath.Join(configPath, CacheDir)
}

// Validate checks the configuration for unsupported values.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.Cache.Backend != "" {
		if err := ValidateOneOf("cache.backend", string(c.Cache.Backend), CacheBackends); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if c.Logging.Format != "" {
		if err := ValidateOneOf("logging.format", c.Logging.Format, []string{"text", "json"}); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if c.Runner.BackoffBase < 0 {
		errs.Add("runner.backoffBase", "must not be negative", c.Runner.BackoffBase)
	}

	seen := make(map[string]bool, len(c.MCPServers))
	for i, server := range c.MCPServers {
		field := fmt.Sprintf("mcpServers[%d]", i)
		if err := ValidateEntityName(server.Name, "mcp server"); err != nil {
			var ve ValidationError
			if errors.As(err, &ve) {
				errs.Add(field+".name", ve.Message, server.Name)
			}
			continue
		}
		if seen[server.Name] {
			errs.Add(field+".name", "is defined more than once", server.Name)
		}
		seen[server.Name] = true

		if err := ValidateOneOf(field+".transport", server.Transport, MCPTransports); err != nil {
			errs = append(errs, err.(ValidationError))
			continue
		}
		switch server.Transport {
		case MCPTransportStdio:
			if err := ValidateRequired(field+".command", server.Command, "stdio transport"); err != nil {
				errs = append(errs, err.(ValidationError))
			}
		default:
			if err := ValidateRequired(field+".url", server.URL, server.Transport+" transport"); err != nil {
				errs = append(errs, err.(ValidationError))
			}
		}
	}

	for tool, tc := range c.Tools {
		if tc.DefaultTTL < 0 {
			errs.Add("tools."+tool+".defaultTTL", "must not be negative", tc.DefaultTTL)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
