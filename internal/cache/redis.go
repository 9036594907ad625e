package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hermes/internal/agent/ports"
	"hermes/internal/logging"
)

// Redis caches search hits in a Redis instance shared across runs.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to redisURL and verifies the connection with a ping.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Get returns the cached value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Put stores value under key for ttl.
func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// New returns a Redis-backed cache, falling back to the in-process cache
// when Redis is unreachable. The fallback is logged, not fatal.
func New(ctx context.Context, redisURL string, logger logging.Logger) (ports.Cache, error) {
	logger = logging.OrNop(logger)

	if redisURL != "" {
		backend, err := NewRedis(ctx, redisURL)
		if err == nil {
			logger.Debug("search cache backed by redis at %s", redisURL)
			return backend, nil
		}
		logger.Warn("redis unavailable, using in-memory cache: %v", err)
	}
	return NewMemory(defaultMemoryEntries)
}
