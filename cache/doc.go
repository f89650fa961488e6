// Package cache is the cache abstraction probed by cacheprobe.
//
// A Cache wraps a Store (go-redis, rueidis or in-process memory) and adds
// observer hooks, key locks and a stale-while-revalidate read:
//
//	c := cache.NewCache(cache.NewGoRedisStore(ctx, rdb, cache.WithPrefix("app")))
//	body, stale, err := c.FlexibleCtx(ctx, "report", cache.FlexibleTTL{
//		Fresh: 30 * time.Second,
//		Stale: time.Minute,
//	}, build)
//
// Background refreshes started by FlexibleCtx are tracked; call Wait (or Close)
// before discarding a Cache.
package cache
