// Package history keeps a bounded, newest-first log of recent device events in a Redis list.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"device-relay/internal/events"
)

const (
	// DefaultKey is the Redis list holding serialized records.
	DefaultKey = "events"
	// DefaultCapacity is the maximum number of records kept.
	DefaultCapacity = 50
)

// StoreError reports a failed read or write against the backing list.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store is the history contract used by the HTTP handlers.
type Store interface {
	Append(ctx context.Context, record *events.EventRecord) error
	Recent(ctx context.Context, limit int) ([]events.EventRecord, error)
	Latest(ctx context.Context) (*events.EventRecord, error)
}

// RedisStore implements Store on a Redis list.
type RedisStore struct {
	client   redis.Cmdable
	key      string
	capacity int
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on the given list key.
// Empty key and non-positive capacity fall back to the defaults.
func NewRedisStore(client redis.Cmdable, key string, capacity int) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisStore{
		client:   client,
		key:      key,
		capacity: capacity,
	}
}

// Capacity returns the maximum number of records kept.
func (s *RedisStore) Capacity() int {
	return s.capacity
}

// Append pushes the record to the head of the list and trims it to capacity.
// Push and trim run in one MULTI/EXEC so readers never observe more than capacity entries.
func (s *RedisStore) Append(ctx context.Context, record *events.EventRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &StoreError{Op: "encode", Err: err}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, int64(s.capacity-1))
		return nil
	})
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}

	slog.Debug("Event appended to history",
		"record_id", record.ID,
		"key", s.key,
	)
	return nil
}

// Recent returns up to limit records, newest first. limit is clamped to [1, capacity].
// Entries that fail to decode are skipped.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]events.EventRecord, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	raw, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, &StoreError{Op: "read", Err: err}
	}

	records := make([]events.EventRecord, 0, len(raw))
	for i, item := range raw {
		var rec events.EventRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			slog.Warn("Skipping undecodable history entry", "key", s.key, "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Latest returns the most recently appended record, or nil when the log is empty
// or its head entry cannot be decoded.
func (s *RedisStore) Latest(ctx context.Context) (*events.EventRecord, error) {
	item, err := s.client.LIndex(ctx, s.key, 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "read", Err: err}
	}

	var rec events.EventRecord
	if err := json.Unmarshal([]byte(item), &rec); err != nil {
		slog.Warn("Head history entry is undecodable", "key", s.key, "error", err)
		return nil, nil
	}
	return &rec, nil
}
