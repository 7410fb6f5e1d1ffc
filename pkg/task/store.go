package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ttl is the KV lifetime for a task record, per spec.md §3 ("≤24h").
const ttl = 24 * time.Hour

// ErrNotFound is returned when a task id has no record (never existed, or
// has expired).
var ErrNotFound = errors.New("task not found")

// Store persists Task records in Redis under the TASKS namespace, per
// spec.md §6's "KV namespace TASKS with keys task:<uuid> and TTL 86400s".
type Store struct {
	redis *redis.Client
}

// NewStore creates a task Store.
func NewStore(rdb *redis.Client) *Store {
	return &Store{redis: rdb}
}

func key(id string) string {
	return "task:" + id
}

// Create persists a new task with the full 24h TTL.
func (s *Store) Create(ctx context.Context, t Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshalling task: %w", err)
	}
	if err := s.redis.Set(ctx, key(t.TaskID), data, ttl).Err(); err != nil {
		return fmt.Errorf("storing task: %w", err)
	}
	return nil
}

// Get retrieves a task by id.
func (s *Store) Get(ctx context.Context, id string) (Task, error) {
	data, err := s.redis.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("reading task: %w", err)
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decoding task: %w", err)
	}
	return t, nil
}

// Update overwrites the task record, preserving its remaining TTL rather
// than resetting it to a fresh 24h — the record's lifetime is bounded from
// creation, not from its last write.
func (s *Store) Update(ctx context.Context, t Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshalling task: %w", err)
	}
	if err := s.redis.Set(ctx, key(t.TaskID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}
