package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/ports"
)

// RedisStore is a Redis implementation of the EnvelopeStore interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis envelope store
func NewRedisStore(client *redis.Client) ports.EnvelopeStore {
	return &RedisStore{
		client: client,
		prefix: "authedge:handoff:",
	}
}

// Put stores a signed envelope under a one-time handoff ID
func (s *RedisStore) Put(ctx context.Context, id, envelope string, ttl time.Duration) error {
	key := s.prefix + id

	if err := s.client.Set(ctx, key, envelope, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store envelope: %w", err)
	}

	return nil
}

// Consume retrieves and removes an envelope. GETDEL makes redemption
// atomic, so a handoff ID cannot be replayed across instances.
func (s *RedisStore) Consume(ctx context.Context, id string) (string, error) {
	key := s.prefix + id

	envelope, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrEnvelopeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume envelope: %w", err)
	}

	return envelope, nil
}
