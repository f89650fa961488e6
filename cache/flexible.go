package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	flexibleCreatedSuffix = ":flexible:created"
	flexibleLockSuffix    = ":flexible:lock"
	defaultFlexibleLock   = 5 * time.Second
)

// FlexibleTTL configures a stale-while-revalidate read.
//
// A value younger than Fresh is served as is. Between Fresh and Stale the
// stored value is served immediately and one background refresh is scheduled.
// Stale is also the hard TTL of the stored entry. Lock bounds the refresh lock
// and the refresh itself; zero means 5s.
type FlexibleTTL struct {
	Fresh time.Duration
	Stale time.Duration
	Lock  time.Duration
}

func (t FlexibleTTL) normalize() (FlexibleTTL, error) {
	if t.Fresh <= 0 || t.Stale < t.Fresh {
		return t, fmt.Errorf("%w: fresh=%s stale=%s", ErrInvalidFlexibleTTL, t.Fresh, t.Stale)
	}
	if t.Lock <= 0 {
		t.Lock = defaultFlexibleLock
	}
	return t, nil
}

// FlexibleKeys lists every store key a flexible read under key may write.
// @group Flexible
func FlexibleKeys(key string) []string {
	return []string{key, key + flexibleCreatedSuffix, key + flexibleLockSuffix}
}

// Flexible is FlexibleCtx with a background context.
// @group Flexible
//
// Example: stale-while-revalidate
//
//	ctx := context.Background()
//	c := cache.NewCache(cache.NewMemoryStore(ctx))
//	body, stale, _ := c.Flexible("dashboard", cache.FlexibleTTL{Fresh: 30 * time.Second, Stale: time.Minute}, func() ([]byte, error) {
//		return []byte("payload"), nil
//	})
//	fmt.Println(string(body), stale) // payload false
func (c *Cache) Flexible(key string, ttl FlexibleTTL, fn func() ([]byte, error)) ([]byte, bool, error) {
	if fn == nil {
		return nil, false, ErrMissingCallback
	}
	return c.FlexibleCtx(context.Background(), key, ttl, func(context.Context) ([]byte, error) {
		return fn()
	})
}

// FlexibleCtx returns the value for key, generating it with fn when missing.
// The second return reports whether a stale value was served while a refresh
// was scheduled. Concurrent cold misses in this process share one fn call;
// refreshes across processes are serialized by the cache's Locker.
// @group Flexible
func (c *Cache) FlexibleCtx(ctx context.Context, key string, ttl FlexibleTTL, fn func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	start := time.Now()
	if fn == nil {
		c.observe(ctx, "flexible", key, false, ErrMissingCallback, start)
		return nil, false, ErrMissingCallback
	}
	ttl, err := ttl.normalize()
	if err != nil {
		c.observe(ctx, "flexible", key, false, err, start)
		return nil, false, err
	}

	body, created, ok, err := c.readFlexible(ctx, key)
	if err != nil {
		c.observe(ctx, "flexible", key, false, err, start)
		return nil, false, err
	}
	if ok {
		age := c.now().Sub(created)
		switch {
		case age < ttl.Fresh:
			c.observe(ctx, "flexible", key, true, nil, start)
			return body, false, nil
		case age < ttl.Stale:
			c.scheduleRefresh(ctx, key, created, ttl, fn)
			c.observe(ctx, "flexible", key, true, nil, start)
			return body, true, nil
		}
	}

	body, err = c.generateFlexible(ctx, key, ttl, fn)
	c.observe(ctx, "flexible", key, false, err, start)
	return body, false, err
}

// ForgetFlexibleCtx removes the value, marker and lock of a flexible key.
// @group Flexible
func (c *Cache) ForgetFlexibleCtx(ctx context.Context, key string) error {
	return c.DeleteManyCtx(ctx, FlexibleKeys(key)...)
}

// readFlexible reports ok only when both the value and a parseable marker exist.
func (c *Cache) readFlexible(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	body, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, time.Time{}, false, err
	}
	created, ok, err := c.readCreated(ctx, key)
	if err != nil || !ok {
		return nil, time.Time{}, false, err
	}
	return body, created, true, nil
}

func (c *Cache) readCreated(ctx context.Context, key string) (time.Time, bool, error) {
	raw, ok, err := c.store.Get(ctx, key+flexibleCreatedSuffix)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(0, nanos), true, nil
}

// generateFlexible runs fn once per key across concurrent callers. The store is
// re-read inside the flight so callers arriving after a finished flight reuse
// its value.
func (c *Cache) generateFlexible(ctx context.Context, key string, ttl FlexibleTTL, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	value, err, _ := c.flight.Do(key, func() (any, error) {
		body, created, ok, err := c.readFlexible(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok && c.now().Sub(created) < ttl.Fresh {
			return body, nil
		}
		body, err = callGenerator(ctx, fn)
		if err != nil {
			return nil, err
		}
		if err := c.writeFlexible(ctx, key, body, ttl); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneBytes(value.([]byte)), nil
}

func (c *Cache) writeFlexible(ctx context.Context, key string, body []byte, ttl FlexibleTTL) error {
	if err := c.store.Set(ctx, key, body, ttl.Stale); err != nil {
		return fmt.Errorf("store flexible value: %w", err)
	}
	marker := strconv.FormatInt(c.now().UnixNano(), 10)
	if err := c.store.Set(ctx, key+flexibleCreatedSuffix, []byte(marker), ttl.Stale); err != nil {
		return fmt.Errorf("store flexible marker: %w", err)
	}
	return nil
}

// scheduleRefresh starts one tracked goroutine that regenerates key if it can
// take the refresh lock and nobody refreshed since seen was read.
func (c *Cache) scheduleRefresh(ctx context.Context, key string, seen time.Time, ttl FlexibleTTL, fn func(context.Context) ([]byte, error)) {
	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), ttl.Lock)
		defer cancel()

		start := time.Now()
		refreshed := false
		lock := c.NewLockHandle(key+flexibleLockSuffix, ttl.Lock)
		_, err := lock.Do(bg, func(ctx context.Context) error {
			created, ok, err := c.readCreated(ctx, key)
			if err != nil {
				return err
			}
			if ok && !created.Equal(seen) {
				return nil
			}
			body, err := callGenerator(ctx, fn)
			if err != nil {
				return err
			}
			if err := c.writeFlexible(ctx, key, body, ttl); err != nil {
				return err
			}
			refreshed = true
			return nil
		})
		c.observe(bg, "flexible_refresh", key, refreshed, err, start)
	}()
}

func callGenerator(ctx context.Context, fn func(context.Context) ([]byte, error)) (body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			body, err = nil, fmt.Errorf("%w: %v", ErrGeneratorPanicked, r)
		}
	}()
	return fn(ctx)
}
