package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedsyncLocker implements Locker with redsync over a go-redis client.
// Keys are prefixed the same way the go-redis store prefixes data keys.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	prefix string
}

// NewRedsyncLocker builds a Locker on client, which may be a single-node or
// cluster client.
// @group Locking
func NewRedsyncLocker(client redis.UniversalClient, prefix string) *RedsyncLocker {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &RedsyncLocker{
		rs:     redsync.New(redsyncgoredis.NewPool(client)),
		prefix: prefix,
	}
}

// TryLock implements Locker with a single acquisition attempt.
func (l *RedsyncLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	mutex := l.rs.NewMutex(l.prefix+":"+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &redsyncLease{mutex: mutex}, true, nil
}

type redsyncLease struct {
	mutex *redsync.Mutex
}

func (l *redsyncLease) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrLockNotHeld
		}
		return err
	}
	if !ok {
		return ErrLockNotHeld
	}
	return nil
}
