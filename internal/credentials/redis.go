package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/storefront/internal/client"
)

// DefaultRedisKey is used when no key is configured
const DefaultRedisKey = "storefront:access-token"

// redisOpTimeout bounds every store operation; TokenStore has no context
const redisOpTimeout = 2 * time.Second

// RedisStore implements client.TokenStore in Redis so several processes can
// share one session
type RedisStore struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

var _ client.TokenStore = (*RedisStore)(nil)

// NewRedisStore creates a store under key. A zero ttl keeps the token until it
// is replaced or cleared.
func NewRedisStore(rdb redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

// GetToken reads the token
func (r *RedisStore) GetToken() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	token, err := r.rdb.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", client.ErrNoToken
		}
		return "", fmt.Errorf("failed to read token from redis: %w", err)
	}
	return token, nil
}

// SaveToken replaces the token
func (r *RedisStore) SaveToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.rdb.Set(ctx, r.key, token, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in redis: %w", err)
	}
	return nil
}

// ClearToken deletes the token
func (r *RedisStore) ClearToken() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}
