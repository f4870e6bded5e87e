// Package cache implements the step output cache.
//
// The Store composes two tiers: an in-memory MemoryBackend and an optional
// persistent Backend. Three persistent backends exist:
//
//   - FileBackend: one JSON file per entry under <dir>/<workflow>/<key>.json
//   - RedisBackend: one redis hash per workflow, one field per key
//   - MemoryBackend: usable as a persistent tier in tests
//
// Entries carry their creation time and an optional TTL. Expiry is checked
// lazily on read; nothing sweeps expired entries in the background.
//
// Keys come from GenerateKey: either "<step>:<custom key>" or "<step>:" plus
// a SHA-256 of the step id, tool id and resolved inputs.
//
// Watcher keeps the memory tier honest when another process deletes cache
// files of a FileBackend, for example `stepflow cache clear` while a
// scheduler is running.
package cache
