package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is the facade probes talk to. It adds default TTLs, the observer
// hook, locking and the flexible read on top of a Store.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	observer   Observer
	locker     Locker
	now        func() time.Time

	flight    singleflight.Group
	refreshes sync.WaitGroup

	leaseMu sync.Mutex
	leases  map[string]Lease
}

// NewCache binds a Cache to store with the default TTL and a store-backed
// locker.
// @group Cache
func NewCache(store Store) *Cache {
	return NewCacheWithTTL(store, defaultCacheTTL)
}

// NewCacheWithTTL is NewCache with the TTL used when a write passes ttl <= 0.
// @group Cache
func NewCacheWithTTL(store Store, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	return &Cache{
		store:      store,
		defaultTTL: defaultTTL,
		locker:     NewStoreLocker(store),
		now:        time.Now,
		leases:     make(map[string]Lease),
	}
}

// WithObserver sets the operation hook. Nil disables it.
func (c *Cache) WithObserver(o Observer) *Cache {
	c.observer = o
	return c
}

// WithLocker replaces the store-backed lock used for refresh serialization.
func (c *Cache) WithLocker(l Locker) *Cache {
	if l != nil {
		c.locker = l
	}
	return c
}

// WithClock overrides the clock used for flexible freshness checks.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	if now != nil {
		c.now = now
	}
	return c
}

// Store exposes the bound store.
func (c *Cache) Store() Store {
	return c.store
}

// Driver names the bound store's backend.
func (c *Cache) Driver() Driver {
	return c.store.Driver()
}

// Ping round-trips to the store.
// @group Cache
func (c *Cache) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.store.Ping(ctx)
	c.observe(ctx, "ping", "", err == nil, err, start)
	return err
}

// Get reads key. ok is false when the key is absent or expired.
// @group Cache
//
// Example: read back a probe value
//
//	c := cache.NewCache(cache.NewMemoryStore(context.Background()))
//	_ = c.Set("probe:connection", []byte("cacheprobe-test-value"), time.Minute)
//	body, ok, _ := c.Get("probe:connection")
//	fmt.Println(ok, string(body)) // true cacheprobe-test-value
func (c *Cache) Get(key string) ([]byte, bool, error) {
	return c.GetCtx(context.Background(), key)
}

// GetCtx is Get bounded by ctx.
func (c *Cache) GetCtx(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := c.store.Get(ctx, key)
	c.observe(ctx, "get", key, ok, err, start)
	return body, ok, err
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
// @group Cache
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	return c.SetCtx(context.Background(), key, value, ttl)
}

func (c *Cache) SetCtx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.store.Set(ctx, key, value, c.resolveTTL(ttl))
	c.observe(ctx, "set", key, false, err, start)
	return err
}

// Add stores value only if key is absent and reports whether it did.
// @group Cache
func (c *Cache) Add(key string, value []byte, ttl time.Duration) (bool, error) {
	return c.AddCtx(context.Background(), key, value, ttl)
}

func (c *Cache) AddCtx(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	created, err := c.store.Add(ctx, key, value, c.resolveTTL(ttl))
	c.observe(ctx, "add", key, created, err, start)
	return created, err
}

// Delete removes key. removed is false when nothing was stored there.
// @group Cache
func (c *Cache) Delete(key string) (bool, error) {
	return c.DeleteCtx(context.Background(), key)
}

func (c *Cache) DeleteCtx(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	removed, err := c.store.Delete(ctx, key)
	c.observe(ctx, "delete", key, removed, err, start)
	return removed, err
}

// DeleteMany removes keys; a missing key is not an error.
func (c *Cache) DeleteMany(keys ...string) error {
	return c.DeleteManyCtx(context.Background(), keys...)
}

func (c *Cache) DeleteManyCtx(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.store.DeleteMany(ctx, keys...)
	for _, key := range keys {
		c.observe(ctx, "delete_many", key, err == nil, err, start)
	}
	return err
}

// Wait returns once no flexible refresh is running.
// @group Flexible
func (c *Cache) Wait() {
	c.refreshes.Wait()
}

// Close drains refreshes, then closes the store.
func (c *Cache) Close() error {
	c.Wait()
	return c.store.Close()
}

func (c *Cache) resolveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.defaultTTL
}

func (c *Cache) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.OnCacheOp(ctx, op, key, hit, err, time.Since(start), c.Driver())
}
