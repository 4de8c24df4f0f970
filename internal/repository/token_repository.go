package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKey = "feishu:tenant_access_token"

// TokenRepository stores the tenant access token in a shared Redis so
// multiple server instances reuse one token instead of each exchanging
// its own.
type TokenRepository struct {
	rdb *redis.Client
}

// NewTokenRepository wraps an established Redis client.
func NewTokenRepository(rdb *redis.Client) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

// Ping verifies the Redis connection.
func (r *TokenRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Get returns the cached token and its remaining lifetime. A missing
// key returns an empty token with no error.
func (r *TokenRepository) Get(ctx context.Context) (string, time.Duration, error) {
	token, err := r.rdb.Get(ctx, tokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}

	ttl, err := r.rdb.TTL(ctx, tokenKey).Result()
	if err != nil {
		return "", 0, err
	}
	if ttl <= 0 {
		// Key exists without an expiry; treat as stale.
		return "", 0, nil
	}
	return token, ttl, nil
}

// Set stores the token with the given lifetime.
func (r *TokenRepository) Set(ctx context.Context, token string, ttl time.Duration) error {
	return r.rdb.Set(ctx, tokenKey, token, ttl).Err()
}

// Delete removes the cached token, forcing the next caller to exchange
// a fresh one.
func (r *TokenRepository) Delete(ctx context.Context) error {
	return r.rdb.Del(ctx, tokenKey).Err()
}

// Close releases the underlying Redis connection.
func (r *TokenRepository) Close() error {
	return r.rdb.Close()
}
