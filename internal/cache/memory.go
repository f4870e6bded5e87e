package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps entries in a mutex protected map of maps.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]map[string]*Entry)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, workflowID, key string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[workflowID][key]
	return entry, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, workflowID string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scoped, ok := m.entries[workflowID]
	if !ok {
		scoped = make(map[string]*Entry)
		m.entries[workflowID] = scoped
	}
	scoped[entry.Key] = entry
	return nil
}

func (m *MemoryBackend) DeleteWorkflow(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, workflowID)
	return nil
}

func (m *MemoryBackend) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]map[string]*Entry)
	return nil
}

func (m *MemoryBackend) Count(_ context.Context, workflowID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries[workflowID]), nil
}

// Entries returns the workflow's entries sorted by key.
func (m *MemoryBackend) Entries(_ context.Context, workflowID string) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entry, 0, len(m.entries[workflowID]))
	for _, entry := range m.entries[workflowID] {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeleteMatching removes every entry for which match returns true and
// reports how many were removed.
func (m *MemoryBackend) DeleteMatching(match func(workflowID, key string) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for workflowID, scoped := range m.entries {
		for key := range scoped {
			if match(workflowID, key) {
				delete(scoped, key)
				removed++
			}
		}
		if len(scoped) == 0 {
			delete(m.entries, workflowID)
		}
	}
	return removed
}
