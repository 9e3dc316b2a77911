package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a JSON-encoding cache stored under "<namespace>:<key>".
// Redis errors never fail the caller: a failed Get is a miss and a failed
// Set is logged and dropped.
type Redis[T any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisClient builds a single-node client for addr.
func NewRedisClient(addr, password string) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

// NewRedis wraps client as a typed cache.
func NewRedis[T any](client redis.UniversalClient, namespace string, ttl time.Duration, logger *zap.Logger) *Redis[T] {
	return &Redis[T]{client: client, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *Redis[T]) key(k string) string {
	return c.namespace + ":" + k
}

// Get returns the cached value for key.
func (c *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("key", c.key(key)), zap.Error(err))
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("redis entry undecodable", zap.String("key", c.key(key)), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Set stores value under key with the cache TTL.
func (c *Redis[T]) Set(ctx context.Context, key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("redis encode failed", zap.String("key", c.key(key)), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", c.key(key)), zap.Error(err))
	}
}

// Delete removes key.
func (c *Redis[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn("redis delete failed", zap.String("key", c.key(key)), zap.Error(err))
	}
}

// Ping checks connectivity, for readiness probes.
func (c *Redis[T]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
