package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const defaultLockRetryInterval = 25 * time.Millisecond

// ErrLockNotHeld is returned when releasing a lock the caller no longer owns.
var ErrLockNotHeld = errors.New("cache: lock not held")

// Locker acquires short-lived exclusive locks without waiting.
// @group Locking
type Locker interface {
	// TryLock reports acquired=false with a nil error when another owner holds key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// Lease is a held lock.
// @group Locking
type Lease interface {
	Release(ctx context.Context) error
}

// StoreLocker implements Locker with the store's add-if-absent primitive
// (SET NX PX on Redis-protocol stores).
type StoreLocker struct {
	store Store
}

// NewStoreLocker builds a Locker backed by store.
// @group Locking
func NewStoreLocker(store Store) *StoreLocker {
	return &StoreLocker{store: store}
}

// TryLock implements Locker.
func (l *StoreLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	token := []byte(uuid.NewString())
	created, err := l.store.Add(ctx, key, token, ttl)
	if err != nil || !created {
		return nil, false, err
	}
	return &storeLease{store: l.store, key: key, token: token}, true, nil
}

type storeLease struct {
	store Store
	key   string
	token []byte
}

// Release deletes the lock key when it still carries this lease's token.
// The check and the delete are two commands; a lease that outlived its TTL
// may race a new owner.
func (l *storeLease) Release(ctx context.Context) error {
	current, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		return err
	}
	if !ok || !bytes.Equal(current, l.token) {
		return ErrLockNotHeld
	}
	_, err = l.store.Delete(ctx, l.key)
	return err
}

// TryLock attempts to acquire key once.
// @group Locking
//
// Example: try lock
//
//	ctx := context.Background()
//	c := cache.NewCache(cache.NewMemoryStore(ctx))
//	locked, _ := c.TryLock("job:sync", 10*time.Second)
//	fmt.Println(locked) // true
func (c *Cache) TryLock(key string, ttl time.Duration) (bool, error) {
	return c.TryLockCtx(context.Background(), key, ttl)
}

func (c *Cache) TryLockCtx(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	start := time.Now()
	lease, locked, err := c.locker.TryLock(ctx, key, c.resolveTTL(ttl))
	if locked {
		c.leaseMu.Lock()
		c.leases[key] = lease
		c.leaseMu.Unlock()
	}
	c.observe(ctx, "lock", key, locked, err, start)
	return locked, err
}

// LockCtx retries TryLockCtx every retryInterval until it succeeds or ctx ends.
// retryInterval <= 0 uses a 25ms default.
// @group Locking
func (c *Cache) LockCtx(ctx context.Context, key string, ttl, retryInterval time.Duration) (bool, error) {
	if retryInterval <= 0 {
		retryInterval = defaultLockRetryInterval
	}
	for {
		locked, err := c.TryLockCtx(ctx, key, ttl)
		if err != nil || locked {
			return locked, err
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// Unlock releases a lock acquired through this Cache.
// @group Locking
func (c *Cache) Unlock(key string) error {
	return c.UnlockCtx(context.Background(), key)
}

func (c *Cache) UnlockCtx(ctx context.Context, key string) error {
	start := time.Now()
	c.leaseMu.Lock()
	lease, ok := c.leases[key]
	delete(c.leases, key)
	c.leaseMu.Unlock()
	if !ok {
		c.observe(ctx, "unlock", key, false, ErrLockNotHeld, start)
		return ErrLockNotHeld
	}
	err := lease.Release(ctx)
	c.observe(ctx, "unlock", key, err == nil, err, start)
	return err
}
