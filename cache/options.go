package cache

import (
	"time"

	"github.com/redis/rueidis"
)

// StoreOption mutates StoreConfig when constructing a store.
type StoreOption func(StoreConfig) StoreConfig

// WithDefaultTTL overrides the fallback TTL used when ttl <= 0.
func WithDefaultTTL(ttl time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DefaultTTL = ttl
		return cfg
	}
}

// WithMemoryCleanupInterval overrides the sweep interval for the memory driver.
func WithMemoryCleanupInterval(interval time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemoryCleanupInterval = interval
		return cfg
	}
}

// WithPrefix sets the key prefix for shared backends.
func WithPrefix(prefix string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithRedisClient sets the go-redis client; required when using DriverGoRedis.
func WithRedisClient(client RedisClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithRueidisClient sets the rueidis client; required when using DriverRueidis.
func WithRueidisClient(client rueidis.Client) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RueidisClient = client
		return cfg
	}
}
