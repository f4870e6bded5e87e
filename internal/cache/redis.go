package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"stepflow/internal/config"
	"stepflow/pkg/logging"
)

// RedisBackend stores each workflow's entries in one hash, <prefix><workflowId>,
// with one field per cache key. It lets several stepflow processes share a
// persistent tier.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = config.DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// DialRedis connects to the server described by cfg and verifies the connection.
func DialRedis(ctx context.Context, cfg config.RedisConfig) (*RedisBackend, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultRedisAddr
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	logging.Info("RedisBackend", "Connected to redis at %s (db %d)", addr, cfg.DB)
	return NewRedisBackend(client, cfg.Prefix), nil
}

func (r *RedisBackend) Name() string { return "redis" }

// Close closes the underlying client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) hashKey(workflowID string) string {
	return r.prefix + workflowID
}

func (r *RedisBackend) Get(ctx context.Context, workflowID, key string) (*Entry, bool, error) {
	data, err := r.client.HGet(ctx, r.hashKey(workflowID), key).Result()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to get %s/%s: %w", workflowID, key, err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s/%s: %w", workflowID, key, err)
	}
	return &entry, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, workflowID string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", entry.Key, err)
	}
	return r.client.HSet(ctx, r.hashKey(workflowID), entry.Key, data).Err()
}

func (r *RedisBackend) DeleteWorkflow(ctx context.Context, workflowID string) error {
	return r.client.Del(ctx, r.hashKey(workflowID)).Err()
}

// DeleteAll removes every hash under the prefix, scanning in batches.
func (r *RedisBackend) DeleteAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisBackend) Count(ctx context.Context, workflowID string) (int, error) {
	n, err := r.client.HLen(ctx, r.hashKey(workflowID)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Entries returns the workflow's entries sorted by key. Corrupt fields are
// skipped with a warning.
func (r *RedisBackend) Entries(ctx context.Context, workflowID string) ([]*Entry, error) {
	fields, err := r.client.HGetAll(ctx, r.hashKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entries of %s: %w", workflowID, err)
	}

	entries := make([]*Entry, 0, len(fields))
	for field, data := range fields {
		var entry Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			logging.Warn("RedisBackend", "Skipping corrupt cache entry %s/%s: %v", workflowID, field, err)
			continue
		}
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}
