package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript atomically increments a counter and sets its expiration when the
// key is first created. Running INCR and EXPIRE as one script guarantees a
// brand-new key never exists without a TTL, and an existing key keeps the TTL
// it was created with.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// decrScript decrements a counter only if it exists, so a compensating
// decrement after expiry never creates a stray negative key without a TTL.
var decrScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    local count = redis.call('DECR', KEYS[1])
    if count < 0 then
        redis.call('SET', KEYS[1], 0, 'KEEPTTL')
        return 0
    end
    return count
end
return 0
`)

// Redis is a Redis-backed implementation of Store suitable for deployments
// where multiple instances must share quota state. All mutation goes through
// Redis atomic primitives; there is no read-then-write round trip.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for the Redis connection.
// All fields should be populated explicitly by your application code from
// environment variables, config files, or other sources. Never reads
// environment variables directly.
type RedisConfig struct {
	// URL is the Redis server address (e.g., "localhost:6379")
	URL string

	// Password for Redis authentication (optional, leave empty if not needed)
	Password string

	// DB is the Redis database number
	DB int

	// Prefix is prepended to all keys (default: "quota:")
	Prefix string
}

// NewRedis creates a Redis store with the given configuration.
// Returns an error if the server is unreachable, so callers can decide to
// run local-only.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Prefix == "" {
		config.Prefix = "quota:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.URL,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: config.Prefix,
	}, nil
}

// Increment atomically increments the counter for the given key, creating it
// with the given TTL if absent, and returns the new count.
func (r *Redis) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	count, err := incrScript.Run(ctx, r.client, []string{r.prefix + key}, seconds).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment failed: %w", err)
	}
	return count, nil
}

// Decrement atomically decrements the counter for the given key, never below
// zero. A missing key is left absent and reads as 0.
func (r *Redis) Decrement(ctx context.Context, key string) (int64, error) {
	count, err := decrScript.Run(ctx, r.client, []string{r.prefix + key}).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis decrement failed: %w", err)
	}
	return count, nil
}

// Get retrieves the current count for the given key without incrementing.
func (r *Redis) Get(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

// Delete removes the counter for the given key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Close releases resources held by the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
