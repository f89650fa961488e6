package cache

import (
	"context"
	"time"
)

// Observer sees every Cache operation once it returns, background flexible
// refreshes included. metrics.CacheObserver is the production implementation.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc lets a plain function act as an Observer.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}
