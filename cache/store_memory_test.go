package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goforj/cacheprobe/cachecore"
	"github.com/goforj/cacheprobe/cachetest"
)

func TestMemoryStoreFallsBackToDefaultTTL(t *testing.T) {
	store := newMemoryStore(40*time.Millisecond, 10*time.Millisecond, "")
	ctx := context.Background()
	if err := store.Set(ctx, "probe:default-ttl", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "probe:default-ttl"); !ok {
		t.Fatalf("expected fresh key to be readable")
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := store.Get(ctx, "probe:default-ttl"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected key written with ttl 0 to expire after the store default")
}

func TestMemoryStoreAddRacesToOneWinner(t *testing.T) {
	store := newMemoryStore(0, 0, "")
	ctx := context.Background()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if created, err := store.Add(ctx, "probe:lock", []byte("token"), time.Minute); err == nil && created {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one add to win, got %d", got)
	}
}

func TestMemoryStoreClosedRejectsCalls(t *testing.T) {
	store := newMemoryStore(0, 0, "")
	ctx := context.Background()
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if err := store.Ping(ctx); err == nil {
		t.Fatalf("expected ping error after close")
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set error after close")
	}
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error after close")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	cachetest.RunStoreContract(t, NewMemoryStore(context.Background()), cachetest.Options{
		CaseName: t.Name(),
	})
}

func TestMemoryStoreNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreConfig{BaseConfig: cachecore.BaseConfig{Prefix: "cacheprobe"}, Driver: DriverMemory})
	if err := store.Set(ctx, "connection", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	inner := store.(*memoryStore).cache
	if _, ok := inner.Get("cacheprobe:connection"); !ok {
		t.Fatalf("expected key stored under the prefix")
	}
	if _, ok := inner.Get("connection"); ok {
		t.Fatalf("expected bare key to be absent")
	}
	removed, err := store.Delete(ctx, "connection")
	if err != nil || !removed {
		t.Fatalf("delete failed: removed=%v err=%v", removed, err)
	}
}
