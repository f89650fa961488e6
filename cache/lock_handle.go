package cache

import (
	"context"
	"sync"
	"time"
)

// LockHandle holds at most one lease on a key. Releasing twice is a no-op.
//
// @group Locking
type LockHandle struct {
	locker Locker
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	lease Lease
}

// NewLockHandle returns an unacquired handle for key. A ttl <= 0 falls back
// to the cache default.
// @group Locking
func (c *Cache) NewLockHandle(key string, ttl time.Duration) *LockHandle {
	return &LockHandle{
		locker: c.locker,
		key:    key,
		ttl:    c.resolveTTL(ttl),
	}
}

// Acquire makes a single attempt and never waits for the current holder.
// @group Locking
func (l *LockHandle) Acquire() (bool, error) {
	return l.AcquireCtx(context.Background())
}

func (l *LockHandle) AcquireCtx(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lease != nil {
		return true, nil
	}
	lease, ok, err := l.locker.TryLock(ctx, l.key, l.ttl)
	if err != nil || !ok {
		return false, err
	}
	l.lease = lease
	return true, nil
}

// Release gives the lease back. Without a lease it does nothing.
// @group Locking
func (l *LockHandle) Release() error {
	return l.ReleaseCtx(context.Background())
}

func (l *LockHandle) ReleaseCtx(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lease == nil {
		return nil
	}
	err := l.lease.Release(ctx)
	l.lease = nil
	return err
}

// Do runs fn while holding the lock. It reports false, and skips fn, when
// another holder has the key.
func (l *LockHandle) Do(ctx context.Context, fn func(context.Context) error) (bool, error) {
	if fn == nil {
		return false, ErrMissingCallback
	}
	ok, err := l.AcquireCtx(ctx)
	if err != nil || !ok {
		return ok, err
	}
	defer func() { _ = l.ReleaseCtx(ctx) }()
	return true, fn(ctx)
}
