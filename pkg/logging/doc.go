// Package logging provides subsystem-tagged structured logging for stepflow.
//
// The package wraps Go's standard slog package so every component logs the
// same way: a level, a subsystem name and a printf-style message, with an
// optional error attached as a structured attribute.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Runner", "Workflow %s started", workflow.ID)
//	logging.Debug("CacheStore", "Promoted %s/%s into memory", workflowID, key)
//	logging.Warn("EventChannel", "Subscriber queue full, dropping %s", evt.Type)
//	logging.Error("FileBackend", err, "Failed to write cache entry %s", key)
//
// JSON output is available for log shippers:
//
//	logging.Init(logging.FormatJSON, logging.LevelDebug, os.Stdout)
//
// # Subsystems
//
//   - Runner: workflow execution and step scheduling
//   - Resolver: input reference resolution
//   - CacheStore, FileBackend, RedisBackend, CacheWatcher: the step output cache
//   - EventChannel, EventLog: lifecycle notifications
//   - WorkflowManager, RunHistory: definition and history storage
//   - ToolRegistry, MCPInvoker: tool invocation
//   - Scheduler: cron triggered runs
//
// Before Init is called only warnings and errors are emitted, through
// slog's default logger, so library consumers stay quiet by default.
//
// The logger is safe for concurrent use.
package logging
