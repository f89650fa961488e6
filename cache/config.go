package cache

import (
	"time"

	"github.com/goforj/cacheprobe/cachecore"
	"github.com/redis/rueidis"
)

const (
	defaultCachePrefix           = "app"
	defaultCacheTTL              = 5 * time.Minute
	defaultMemoryCleanupInterval = 10 * time.Minute
)

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	cachecore.BaseConfig

	Driver Driver

	// MemoryCleanupInterval controls in-process cache eviction.
	MemoryCleanupInterval time.Duration

	// RedisClient is required when DriverGoRedis is used. Both *redis.Client and
	// *redis.ClusterClient satisfy it.
	RedisClient RedisClient

	// RueidisClient is required when DriverRueidis is used.
	RueidisClient rueidis.Client
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultCacheTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultCachePrefix
	}
	return c
}
