package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stepflow/pkg/logging"
)

// SetOptions controls how Store.Set writes an entry.
type SetOptions struct {
	// TTL is the entry's time to live; zero means no expiry.
	TTL time.Duration
	// Persistent selects the persistent tier. Nil means true.
	Persistent *bool
}

// Stats describes a workflow's cache.
type Stats struct {
	// Entries counts the persistent tier, or the memory tier when there is
	// no persistent tier. Expired entries are included until overwritten.
	Entries int `json:"entries"`
	// MemoryEntries counts the memory tier.
	MemoryEntries int `json:"memoryEntries"`
	// LastAccessed is the last Get or Set for the workflow in this process.
	LastAccessed time.Time `json:"lastAccessed,omitempty"`
}

// Store is the two-tier step output cache: an in-memory tier in front of an
// optional persistent Backend.
//
// Reads check memory first, then the persistent tier, and promote persistent
// hits into memory. Expired entries are misses in both tiers; they are not
// deleted eagerly. Backend failures are logged and degrade to misses (reads)
// or no-ops (writes) so a broken cache never fails a step.
//
// A Store is safe for concurrent use.
type Store struct {
	memory     *MemoryBackend
	persistent Backend
	clock      Clock

	mu           sync.Mutex
	lastAccessed map[string]time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersistent adds a persistent tier.
func WithPersistent(b Backend) Option {
	return func(s *Store) { s.persistent = b }
}

// WithClock replaces the system clock, mainly for expiry tests.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore creates a Store. Without WithPersistent it is memory only.
func NewStore(opts ...Option) *Store {
	s := &Store{
		memory:       NewMemoryBackend(),
		clock:        SystemClock(),
		lastAccessed: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persistent returns the persistent tier, or nil.
func (s *Store) Persistent() Backend {
	return s.persistent
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

func (s *Store) touch(workflowID string) {
	s.mu.Lock()
	s.lastAccessed[workflowID] = s.clock.Now()
	s.mu.Unlock()
}

// Get returns the unexpired value cached under (workflowID, key).
func (s *Store) Get(ctx context.Context, workflowID, key string) (interface{}, bool) {
	s.touch(workflowID)
	now := s.clock.Now()

	if entry, ok, _ := s.memory.Get(ctx, workflowID, key); ok {
		if !entry.Expired(now) {
			logging.Debug("CacheStore", "Memory hit for %s/%s", workflowID, key)
			return entry.Value, true
		}
		logging.Debug("CacheStore", "Memory entry %s/%s expired", workflowID, key)
	}

	if s.persistent == nil {
		return nil, false
	}

	entry, ok, err := s.persistent.Get(ctx, workflowID, key)
	if err != nil {
		logging.Warn("CacheStore", "Persistent read of %s/%s failed, treating as miss: %v", workflowID, key, err)
		return nil, false
	}
	if !ok || entry.Expired(now) {
		return nil, false
	}

	_ = s.memory.Set(ctx, workflowID, entry)
	logging.Debug("CacheStore", "Promoted %s/%s from %s into memory", workflowID, key, s.persistent.Name())
	return entry.Value, true
}

// Set caches value under (workflowID, key). The memory tier is always
// written; the persistent tier unless opts.Persistent is explicitly false.
func (s *Store) Set(ctx context.Context, workflowID, key string, value interface{}, opts SetOptions) {
	s.touch(workflowID)

	entry := &Entry{
		Key:       key,
		Value:     value,
		Timestamp: s.clock.Now(),
		TTL:       ttlMillis(opts.TTL),
	}
	_ = s.memory.Set(ctx, workflowID, entry)

	if s.persistent == nil || (opts.Persistent != nil && !*opts.Persistent) {
		return
	}
	if err := s.persistent.Set(ctx, workflowID, entry); err != nil {
		logging.Warn("CacheStore", "Persistent write of %s/%s failed: %v", workflowID, key, err)
	}
}

// ClearWorkflowCache removes every entry of the workflow from both tiers.
func (s *Store) ClearWorkflowCache(ctx context.Context, workflowID string) error {
	_ = s.memory.DeleteWorkflow(ctx, workflowID)
	if s.persistent != nil {
		if err := s.persistent.DeleteWorkflow(ctx, workflowID); err != nil {
			return fmt.Errorf("failed to clear %s cache of %s: %w", s.persistent.Name(), workflowID, err)
		}
	}
	logging.Info("CacheStore", "Cleared cache of workflow %s", workflowID)
	return nil
}

// ClearAll removes every entry of every workflow from both tiers.
func (s *Store) ClearAll(ctx context.Context) error {
	_ = s.memory.DeleteAll(ctx)
	if s.persistent != nil {
		if err := s.persistent.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to clear %s cache: %w", s.persistent.Name(), err)
		}
	}

	s.mu.Lock()
	s.lastAccessed = make(map[string]time.Time)
	s.mu.Unlock()

	logging.Info("CacheStore", "Cleared all cache entries")
	return nil
}

// Stats reports entry counts and last access of the workflow.
func (s *Store) Stats(ctx context.Context, workflowID string) Stats {
	memoryEntries, _ := s.memory.Count(ctx, workflowID)
	stats := Stats{
		Entries:       memoryEntries,
		MemoryEntries: memoryEntries,
	}

	if s.persistent != nil {
		n, err := s.persistent.Count(ctx, workflowID)
		if err != nil {
			logging.Warn("CacheStore", "Failed to count %s entries of %s: %v", s.persistent.Name(), workflowID, err)
		} else {
			stats.Entries = n
		}
	}

	s.mu.Lock()
	stats.LastAccessed = s.lastAccessed[workflowID]
	s.mu.Unlock()
	return stats
}

// Snapshot returns the workflow's entries keyed by cache key, reading the
// persistent tier when there is one. Memory-only entries are included.
func (s *Store) Snapshot(ctx context.Context, workflowID string) (map[string]*Entry, error) {
	out := make(map[string]*Entry)

	memoryEntries, _ := s.memory.Entries(ctx, workflowID)
	for _, entry := range memoryEntries {
		out[entry.Key] = entry
	}

	if s.persistent != nil {
		entries, err := s.persistent.Entries(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s cache of %s: %w", s.persistent.Name(), workflowID, err)
		}
		for _, entry := range entries {
			if existing, ok := out[entry.Key]; ok && existing.Timestamp.After(entry.Timestamp) {
				continue
			}
			out[entry.Key] = entry
		}
	}
	return out, nil
}

// Import writes entries into both tiers, keeping their original timestamps
// so TTLs keep counting from creation.
func (s *Store) Import(ctx context.Context, workflowID string, entries map[string]*Entry) error {
	var errs []error
	for key, entry := range entries {
		if entry == nil {
			continue
		}
		imported := *entry
		imported.Key = key
		_ = s.memory.Set(ctx, workflowID, &imported)
		if s.persistent != nil {
			if err := s.persistent.Set(ctx, workflowID, &imported); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to import cache entries of %s: %w", workflowID, errors.Join(errs...))
	}
	logging.Debug("CacheStore", "Imported %d cache entries for %s", len(entries), workflowID)
	return nil
}

// evictMemory drops memory entries matching fn. It is used when the
// persistent copy of an entry disappears underneath the process.
func (s *Store) evictMemory(fn func(workflowID, key string) bool) int {
	return s.memory.DeleteMatching(fn)
}

func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	ms := ttl.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return ms
}
