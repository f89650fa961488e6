package cache

import (
	"context"
	"time"
)

// CoreAPI is identity plus lifecycle.
type CoreAPI interface {
	Driver() Driver
	Ping(ctx context.Context) error
	Close() error
}

type ReadAPI interface {
	Get(key string) ([]byte, bool, error)
	GetCtx(ctx context.Context, key string) ([]byte, bool, error)
}

// WriteAPI covers everything that mutates keys.
type WriteAPI interface {
	Set(key string, value []byte, ttl time.Duration) error
	SetCtx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Add(key string, value []byte, ttl time.Duration) (bool, error)
	AddCtx(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(key string) (bool, error)
	DeleteCtx(ctx context.Context, key string) (bool, error)
	DeleteMany(keys ...string) error
	DeleteManyCtx(ctx context.Context, keys ...string) error
}

// LockAPI locks are plain keys set with NX and a token value.
type LockAPI interface {
	TryLock(key string, ttl time.Duration) (bool, error)
	TryLockCtx(ctx context.Context, key string, ttl time.Duration) (bool, error)
	LockCtx(ctx context.Context, key string, ttl, retryInterval time.Duration) (bool, error)
	Unlock(key string) error
	UnlockCtx(ctx context.Context, key string) error
}

// FlexibleAPI is the stale-while-revalidate read and its bookkeeping.
type FlexibleAPI interface {
	Flexible(key string, ttl FlexibleTTL, fn func() ([]byte, error)) ([]byte, bool, error)
	FlexibleCtx(ctx context.Context, key string, ttl FlexibleTTL, fn func(context.Context) ([]byte, error)) ([]byte, bool, error)
	ForgetFlexibleCtx(ctx context.Context, key string) error
	Wait()
}

// API is what *Cache offers. probe.Target is the narrower set a probe needs.
type API interface {
	CoreAPI
	ReadAPI
	WriteAPI
	LockAPI
	FlexibleAPI
}

var _ API = (*Cache)(nil)
