package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached step output.
type Entry struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
	// TTL in milliseconds; zero means the entry never expires.
	TTL int64 `json:"ttl,omitempty"`
}

// ExpiresAt returns the absolute expiry time and whether the entry expires at all.
func (e *Entry) ExpiresAt() (time.Time, bool) {
	if e.TTL <= 0 {
		return time.Time{}, false
	}
	return e.Timestamp.Add(time.Duration(e.TTL) * time.Millisecond), true
}

// Expired reports whether the entry is past its TTL at now.
func (e *Entry) Expired(now time.Time) bool {
	expiry, ok := e.ExpiresAt()
	return ok && now.After(expiry)
}

// Backend is a single cache tier. Entries are scoped by workflow id.
//
// Get returns (nil, false, nil) for a missing entry. Backends do not check
// expiry; the Store does.
type Backend interface {
	Name() string
	Get(ctx context.Context, workflowID, key string) (*Entry, bool, error)
	Set(ctx context.Context, workflowID string, entry *Entry) error
	DeleteWorkflow(ctx context.Context, workflowID string) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context, workflowID string) (int, error)
	Entries(ctx context.Context, workflowID string) ([]*Entry, error)
}

// Clock supplies the current time to the Store.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}

// ManualClock is a Clock that only moves when told to. It is used to test
// expiry without sleeping.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
