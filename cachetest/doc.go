// Package cachetest provides reusable store contract tests for cache.Store implementations.
//
// Example:
//
//	func TestGoRedisStoreContract(t *testing.T) {
//		srv := miniredis.RunT(t)
//		rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
//		store := cache.NewGoRedisStore(context.Background(), rdb)
//
//		// miniredis only expires keys when told to.
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			CaseName:    t.Name(),
//			FastForward: srv.FastForward,
//		})
//	}
package cachetest
