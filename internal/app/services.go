package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"stepflow/internal/cache"
	"stepflow/internal/config"
	"stepflow/internal/events"
	"stepflow/internal/invoker"
	"stepflow/internal/workflow"
	"stepflow/pkg/logging"
)

// eventQueueSize bounds the events waiting to be written to the event file.
const eventQueueSize = 256

// Services holds every initialized component.
type Services struct {
	Cache    *cache.Store
	Backend  cache.Backend
	Watcher  *cache.Watcher
	Tools    *invoker.Registry
	Events   *events.Channel
	FileSink *events.FileSink
	History  *workflow.HistoryStore
	Manager  *workflow.Manager
	Runner   *workflow.Runner

	closers []func() error
}

// InitializeServices builds the services described by cfg.Stepflow.
func InitializeServices(ctx context.Context, cfg *Config) (*Services, error) {
	if cfg.Stepflow == nil {
		return nil, errors.New("configuration not loaded")
	}
	sc := *cfg.Stepflow
	s := &Services{}

	backend, err := newCacheBackend(ctx, sc, cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	s.Backend = backend
	if closer, ok := backend.(interface{ Close() error }); ok {
		s.closers = append(s.closers, closer.Close)
	}
	if backend != nil {
		s.Cache = cache.NewStore(cache.WithPersistent(backend))
	} else {
		s.Cache = cache.NewStore()
	}

	if fileBackend, ok := backend.(*cache.FileBackend); ok && sc.Cache.Watch {
		s.Watcher = cache.NewWatcher(s.Cache, fileBackend)
		if err := s.Watcher.Start(ctx); err != nil {
			logging.Warn("Services", "Cache watcher disabled: %v", err)
			s.Watcher = nil
		} else {
			s.closers = append(s.closers, func() error { s.Watcher.Stop(); return nil })
		}
	}

	tools, err := invoker.NewRegistryFromConfig(sc)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to configure tools: %w", err)
	}
	s.Tools = tools
	s.closers = append(s.closers, tools.Close)

	s.Events = events.NewChannel()
	s.Events.SubscribeAll(events.LogSink{Verbose: sc.Events.Verbose || cfg.Debug}.Handle)
	if sc.Events.File != "" {
		path := sc.Events.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.ConfigPath, path)
		}
		sink, err := events.NewFileSink(path)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open event file: %w", err)
		}
		s.FileSink = sink
		sink.Attach(s.Events, eventQueueSize)
		s.closers = append(s.closers, sink.Close)
	}

	s.Manager = workflow.NewManager(cfg.ConfigPath, s.Cache, tools)

	opts := []workflow.RunnerOption{
		workflow.WithCache(s.Cache),
		workflow.WithEvents(s.Events),
	}
	if sc.Runner.BackoffBase > 0 {
		opts = append(opts, workflow.WithBackoffBase(sc.Runner.BackoffBase))
	}
	s.History = workflow.NewHistoryStore(cfg.ConfigPath)
	if sc.Runner.ShouldRecordHistory() {
		opts = append(opts, workflow.WithHistory(s.History))
	}
	s.Runner = workflow.NewRunner(tools, opts...)

	logging.Debug("Services", "Initialized services (cache backend %s, %d MCP servers)", backendName(backend), len(tools.Servers()))
	return s, nil
}

// newCacheBackend returns the persistent tier for cfg, or nil for a memory
// only cache.
func newCacheBackend(ctx context.Context, cfg config.Config, configPath string) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return nil, nil
	case config.CacheBackendRedis:
		backend, err := cache.DialRedis(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		return backend, nil
	default:
		return cache.NewFileBackend(config.ResolveCacheDir(cfg, configPath)), nil
	}
}

func backendName(b cache.Backend) string {
	if b == nil {
		return "memory"
	}
	return b.Name()
}

// Close releases services in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
