package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLockHandleAcquireRelease(t *testing.T) {
	c := NewCache(NewMemoryStore(context.Background()))
	lock := c.NewLockHandle("lh:acquire", time.Second)

	locked, err := lock.Acquire()
	if err != nil || !locked {
		t.Fatalf("expected acquire success, locked=%v err=%v", locked, err)
	}

	other := c.NewLockHandle("lh:acquire", time.Second)
	locked, err = other.Acquire()
	if err != nil || locked {
		t.Fatalf("expected contention miss, locked=%v err=%v", locked, err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second release should be no-op, got %v", err)
	}

	locked, err = other.Acquire()
	if err != nil || !locked {
		t.Fatalf("expected acquire after release, locked=%v err=%v", locked, err)
	}
}

func TestLockHandleGetAutoReleasesOnSuccessAndError(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore(ctx))
	lock := c.NewLockHandle("lh:get", time.Second)

	var calls atomic.Int64
	locked, err := lock.Do(ctx, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil || !locked {
		t.Fatalf("expected get lock callback success, locked=%v err=%v", locked, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected callback call count 1, got %d", calls.Load())
	}
	if lockedAgain, err := c.TryLock("lh:get", time.Second); err != nil || !lockedAgain {
		t.Fatalf("expected lock released after callback success, locked=%v err=%v", lockedAgain, err)
	}

	expected := errors.New("boom")
	locked, err = c.NewLockHandle("lh:get:err", time.Second).Do(ctx, func(context.Context) error {
		return expected
	})
	if !locked || !errors.Is(err, expected) {
		t.Fatalf("expected callback error propagation, locked=%v err=%v", locked, err)
	}
	if lockedAgain, err := c.TryLock("lh:get:err", time.Second); err != nil || !lockedAgain {
		t.Fatalf("expected lock released after callback error, locked=%v err=%v", lockedAgain, err)
	}

	if _, err := lock.Do(ctx, nil); !errors.Is(err, ErrMissingCallback) {
		t.Fatalf("expected ErrMissingCallback, got %v", err)
	}
}

func TestCacheLockUnlock(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore(ctx))

	if err := c.Unlock("never"); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld for unknown key, got %v", err)
	}
	locked, err := c.TryLockCtx(ctx, "job", time.Second)
	if err != nil || !locked {
		t.Fatalf("expected lock, locked=%v err=%v", locked, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 80*time.Millisecond)
	defer cancel()
	locked, err = c.LockCtx(waitCtx, "job", time.Second, 10*time.Millisecond)
	if locked || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected blocking lock to time out, locked=%v err=%v", locked, err)
	}

	if err := c.UnlockCtx(ctx, "job"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	locked, err = c.LockCtx(ctx, "job", time.Second, 0)
	if err != nil || !locked {
		t.Fatalf("expected lock after unlock, locked=%v err=%v", locked, err)
	}
}

func TestStoreLeaseReleaseAfterTakeover(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	locker := NewStoreLocker(store)

	lease, locked, err := locker.TryLock(ctx, "lease", time.Second)
	if err != nil || !locked {
		t.Fatalf("expected lease, locked=%v err=%v", locked, err)
	}
	if err := store.Set(ctx, "lease", []byte("someone-else"), time.Second); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if err := lease.Release(ctx); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld after takeover, got %v", err)
	}
	if _, ok, _ := store.Get(ctx, "lease"); !ok {
		t.Fatalf("release must not delete another owner's lock")
	}
}

func TestRedsyncLockerTryLock(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedsyncLocker(client, "pfx")
	lease, locked, err := locker.TryLock(ctx, "job", time.Second)
	if err != nil || !locked {
		t.Fatalf("expected first lock, locked=%v err=%v", locked, err)
	}
	if !srv.Exists("pfx:job") {
		t.Fatalf("expected prefixed lock key in redis")
	}
	if _, locked, err := locker.TryLock(ctx, "job", time.Second); err != nil || locked {
		t.Fatalf("expected contention miss, locked=%v err=%v", locked, err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, locked, err := locker.TryLock(ctx, "job", time.Second); err != nil || !locked {
		t.Fatalf("expected lock after release, locked=%v err=%v", locked, err)
	}
}
