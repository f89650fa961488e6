//go:build bench

package cache_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/redis/rueidis"

	"github.com/goforj/cacheprobe/cache"
)

type benchCase struct {
	name string
	new  func(testing.TB) *cache.Cache
}

// benchCases covers the in-process stores plus a live server when
// BENCH_REDIS_ADDR is set.
func benchCases() []benchCase {
	ctx := context.Background()
	cases := []benchCase{
		{name: "memory", new: func(testing.TB) *cache.Cache {
			return cache.NewCache(cache.NewMemoryStore(ctx))
		}},
		{name: "goredis-miniredis", new: func(tb testing.TB) *cache.Cache {
			srv := miniredis.RunT(tb)
			client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
			return cache.NewCache(cache.NewGoRedisStore(ctx, client))
		}},
	}
	addr := os.Getenv("BENCH_REDIS_ADDR")
	if addr == "" {
		return cases
	}
	return append(cases,
		benchCase{name: "goredis", new: func(testing.TB) *cache.Cache {
			return cache.NewCache(cache.NewGoRedisStore(ctx, redis.NewClient(&redis.Options{Addr: addr})))
		}},
		benchCase{name: "rueidis", new: func(tb testing.TB) *cache.Cache {
			client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{addr}, DisableCache: true, ForceSingleClient: true})
			if err != nil {
				tb.Fatalf("rueidis client: %v", err)
			}
			return cache.NewCache(cache.NewRueidisStore(ctx, client))
		}},
	)
}

func BenchmarkCacheSetGet(b *testing.B) {
	ctx := context.Background()
	payload := []byte("cacheprobe-bench-value")
	for _, bc := range benchCases() {
		b.Run(bc.name, func(b *testing.B) {
			c := bc.new(b)
			b.Cleanup(func() { _ = c.Close() })
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				key := "bench:" + strconv.Itoa(i%1024)
				if err := c.SetCtx(ctx, key, payload, time.Minute); err != nil {
					b.Fatalf("set: %v", err)
				}
				if _, ok, err := c.GetCtx(ctx, key); err != nil || !ok {
					b.Fatalf("get: ok=%v err=%v", ok, err)
				}
			}
		})
	}
}

func BenchmarkFlexibleHit(b *testing.B) {
	ctx := context.Background()
	ttl := cache.FlexibleTTL{Fresh: time.Minute, Stale: 2 * time.Minute}
	gen := func(context.Context) ([]byte, error) { return []byte("generated"), nil }
	for _, bc := range benchCases() {
		b.Run(bc.name, func(b *testing.B) {
			c := bc.new(b)
			b.Cleanup(func() { _ = c.Close() })
			if _, _, err := c.FlexibleCtx(ctx, "bench:flexible", ttl, gen); err != nil {
				b.Fatalf("warm: %v", err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := c.FlexibleCtx(ctx, "bench:flexible", ttl, gen); err != nil {
					b.Fatalf("flexible: %v", err)
				}
			}
		})
	}
}
