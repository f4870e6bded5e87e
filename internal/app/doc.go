// Package app bootstraps stepflow for a CLI invocation.
//
// NewApplication loads <configPath>/config.yaml, configures logging and
// initializes the services:
//
//   - the cache Store with the configured persistent tier (file, redis or none)
//     and, for the file tier, an optional directory watcher
//   - the tool Registry with builtin tools and configured MCP servers
//   - the event Channel with a log sink and an optional JSON lines file sink
//   - the workflow Manager, HistoryStore and Runner
//
// The Application methods implement the CLI commands on top of them: running
// a workflow once, validating definitions, cache maintenance, run history and
// the cron scheduler.
package app
