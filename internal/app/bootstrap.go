package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"stepflow/internal/config"
	"stepflow/pkg/logging"
)

// Application wires the configured cache, tools, events, history and runner
// together for one CLI invocation.
//
// Initialization has two phases: configuration loading (which also sets up
// logging) and service initialization. Close releases everything that was
// opened.
//
//	application, err := app.NewApplication(app.NewConfig(false, ""))
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	result, err := application.RunWorkflow(ctx, "report")
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration and initializes all services.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logOutput := cfg.LogOutput
	if logOutput == nil {
		logOutput = os.Stderr
	}
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(level, logOutput)

	if cfg.ConfigPath == "" {
		cfg.ConfigPath = config.GetDefaultConfigPathOrPanic()
	}

	stepflowCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from path: %s", cfg.ConfigPath)
		return nil, fmt.Errorf("failed to load configuration from path %s: %w", cfg.ConfigPath, err)
	}
	cfg.Stepflow = &stepflowCfg

	// config.yaml may pick a different level or format; --debug wins.
	if !cfg.Debug {
		if configured, err := logging.ParseLevel(stepflowCfg.Logging.Level); err == nil {
			level = configured
		}
	}
	logging.Init(logging.Format(stepflowCfg.Logging.Format), level, logOutput)

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services exposes the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// ConfigPath returns the resolved configuration directory.
func (a *Application) ConfigPath() string {
	return a.config.ConfigPath
}

// Close releases the services.
func (a *Application) Close() error {
	return a.services.Close()
}
