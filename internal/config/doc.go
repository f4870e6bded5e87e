// Package config provides configuration management for stepflow.
//
// Configuration is loaded from a single directory. The default is
// ~/.config/stepflow; commands accept --config-path to use another one.
//
// # Configuration Directory
//
//   - config.yaml: main configuration file (optional, defaults apply)
//   - workflows/: workflow definitions, one YAML file per workflow
//   - runs/: run history, one directory per workflow
//   - cache/: file cache tier, one directory per workflow
//
// # config.yaml
//
//	logging:
//	  level: info
//	  format: text
//	runner:
//	  backoffBase: 1s
//	cache:
//	  backend: redis        # memory, file or redis
//	  watch: true
//	  redis:
//	    addr: localhost:6379
//	tools:
//	  screen/capture:
//	    defaultTTL: 10m
//	mcpServers:
//	  - name: screen
//	    transport: stdio
//	    command: screen-mcp
//
// # Entity Storage
//
// Storage is a small generic file store: entities are grouped by type in
// subdirectories and each entity is one file whose name is the sanitized
// entity name. The extension defaults to .yaml and can be changed with
// WithExtension:
//
//	storage := config.NewStorageWithPath(dir).WithExtension(".json")
//	err := storage.Save("nightly", "s1:abc", data)
//	data, err := storage.Load("nightly", "s1:abc")
//
// Writes go through a temporary file and a rename, so concurrent readers see
// either the old or the new content. A missing entity yields an error
// wrapping ErrEntityNotFound.
//
// # Validation
//
// ValidationErrors collects field level problems; Config.Validate and the
// workflow definition checks both report through it.
package config
