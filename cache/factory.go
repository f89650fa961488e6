package cache

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
)

// NewStore returns a concrete store for the requested driver.
// Caller is responsible for providing any driver-specific client.
// @group Constructors
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := cache.NewStore(ctx, cache.StoreConfig{
//		Driver: cache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(_ context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	switch cfg.Driver {
	case DriverGoRedis:
		return newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverRueidis:
		return newRueidisStore(cfg.RueidisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverMemory:
		return newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval, cfg.Prefix)
	default:
		return &errorStore{
			driver: cfg.Driver,
			err:    fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver),
		}
	}
}

// NewStoreWith builds a store using a driver and a set of functional options.
// @group Constructors
//
// Example: go-redis store (options)
//
//	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := cache.NewStoreWith(ctx, cache.DriverGoRedis,
//		cache.WithRedisClient(rdb),
//		cache.WithPrefix("cacheprobe"),
//	)
//	fmt.Println(store.Driver()) // goredis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store with optional overrides.
// @group Constructors
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewGoRedisStore is a convenience for a go-redis backed store. The client may be a
// single-node or a cluster client.
// @group Constructors
func NewGoRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverGoRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewRueidisStore is a convenience for a rueidis backed store.
// @group Constructors
func NewRueidisStore(ctx context.Context, client rueidis.Client, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRueidis, append([]StoreOption{WithRueidisClient(client)}, opts...)...)
}
