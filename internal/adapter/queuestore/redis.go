// Package queuestore persists per-user queue snapshots in Redis so that a
// restarted session can restore positions and the paused flag. Snapshots
// are write-behind; the in-memory queue stays authoritative.
package queuestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"vidforge/internal/domain"
)

const opTimeout = 2 * time.Second

// RedisStore implements domain.QueueStateStore.
// Keys: queue:<userID> => JSON(QueueSnapshot).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store. A zero ttl keeps snapshots forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(userID string) string {
	return fmt.Sprintf("queue:%s", userID)
}

// Save writes the snapshot for a user.
func (s *RedisStore) Save(ctx context.Context, userID string, snap domain.QueueSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode queue snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key(userID), b, s.ttl).Err()
}

// Load fetches the user's snapshot, or domain.ErrNotFound when absent.
func (s *RedisStore) Load(ctx context.Context, userID string) (*domain.QueueSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var snap domain.QueueSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("decode queue snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the user's snapshot.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Del(ctx, s.key(userID)).Err()
}

var _ domain.QueueStateStore = (*RedisStore)(nil)
