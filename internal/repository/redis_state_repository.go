package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

// RedisStateRepository stores each user's state as one JSON value under its root key.
type RedisStateRepository struct {
	client  redis.Cmdable
	rootKey string
}

// NewRedisStateRepository constructs the repository.
func NewRedisStateRepository(client redis.Cmdable, rootKey string) *RedisStateRepository {
	return &RedisStateRepository{client: client, rootKey: rootKey}
}

// Load implements session.StateRepository.
func (r *RedisStateRepository) Load(ctx context.Context, userID string) (*models.SessionState, error) {
	key := StateKey(r.rootKey, userID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrStateNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeState(raw)
}

// Save implements session.StateRepository. State never expires.
func (r *RedisStateRepository) Save(ctx context.Context, userID string, state models.SessionState) error {
	payload, err := encodeState(state)
	if err != nil {
		return err
	}
	key := StateKey(r.rootKey, userID)
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (r *RedisStateRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
