package quotakit

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds configuration for a quota Cache.
// All fields should be populated explicitly by your application code from
// environment variables, config files, or other sources. Never reads
// environment variables directly.
type Config struct {
	// RedisURL is the Redis server address (e.g., "localhost:6379").
	// Leave empty to run with the in-memory store only.
	RedisURL string `validate:"omitempty,hostname_port"`

	// RedisPassword for Redis authentication (optional)
	RedisPassword string

	// RedisDB is the Redis database number
	RedisDB int `validate:"gte=0"`

	// KeyPrefix is prepended to all Redis keys (default: "quota:")
	KeyPrefix string

	// DisableRedis forces the in-memory store even when RedisURL is set.
	// Useful for tests and single-instance deployments.
	DisableRedis bool
}

func (c Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
