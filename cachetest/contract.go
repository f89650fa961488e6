package cachetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goforj/cacheprobe/cachecore"
)

// Options tunes RunStoreContract for a backend.
type Options struct {
	// CaseName prefixes every key the suite writes. Empty means t.Name().
	CaseName string
	// SkipCloneCheck is for stores that hand out shared buffers on Get.
	SkipCloneCheck bool
	// TTL is the short expiry written by the expiry check. Default 50ms.
	TTL time.Duration
	// TTLWait bounds how long the expiry check polls for a miss. Default 120ms.
	TTLWait time.Duration
	// FastForward moves the server clock, for servers such as miniredis
	// that only expire keys when told time has passed.
	FastForward func(time.Duration)
}

// Store is what RunStoreContract exercises.
type Store = cachecore.Store

// RunStoreContract checks the behavior every probe relies on: byte exact
// round trips, expiry, add-if-absent, delete reporting and multi-key delete.
// Each check is a subtest so a failing backend reports all broken behaviors.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()

	prefix := opts.CaseName
	if prefix == "" {
		prefix = t.Name()
	}
	prefix = strings.NewReplacer("/", "_", " ", "_").Replace(prefix)
	key := func(name string) string { return prefix + ":" + name }

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 120 * time.Millisecond
	}
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx), "ping")

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key("alpha"), []byte("value"), time.Second))
		body, ok, err := store.Get(ctx, key("alpha"))
		require.NoError(t, err)
		require.True(t, ok, "stored key reads as a miss")
		require.Equal(t, "value", string(body))

		if opts.SkipCloneCheck {
			return
		}
		body[0] = 'X'
		again, _, err := store.Get(ctx, key("alpha"))
		require.NoError(t, err)
		require.Equal(t, "value", string(again), "mutating a read changed the stored value")
	})

	t.Run("binary payload", func(t *testing.T) {
		payload := []byte{0x00, 0xff, '\n', 0x7f, 0x00}
		require.NoError(t, store.Set(ctx, key("binary"), payload, time.Second))
		body, ok, err := store.Get(ctx, key("binary"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, payload, body)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key("ttl"), []byte("v"), ttl))
		if opts.FastForward != nil {
			opts.FastForward(ttl + time.Millisecond)
		}
		require.Eventuallyf(t, func() bool {
			_, ok, err := store.Get(ctx, key("ttl"))
			return err == nil && !ok
		}, wait, 10*time.Millisecond, "key still readable after %s", wait)
	})

	t.Run("add if absent", func(t *testing.T) {
		created, err := store.Add(ctx, key("once"), []byte("first"), time.Second)
		require.NoError(t, err)
		require.True(t, created, "first add did not create")

		created, err = store.Add(ctx, key("once"), []byte("second"), time.Second)
		require.NoError(t, err)
		require.False(t, created, "second add overwrote")

		body, _, err := store.Get(ctx, key("once"))
		require.NoError(t, err)
		require.Equal(t, "first", string(body))
	})

	t.Run("delete reports removal", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key("a"), []byte("1"), time.Second))

		removed, err := store.Delete(ctx, key("a"))
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = store.Delete(ctx, key("a"))
		require.NoError(t, err)
		require.False(t, removed, "deleting an absent key reported removal")

		_, ok, err := store.Get(ctx, key("a"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	// b and c usually hash to different cluster slots.
	t.Run("delete many", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key("b"), []byte("2"), time.Second))
		require.NoError(t, store.Set(ctx, key("c"), []byte("3"), time.Second))
		require.NoError(t, store.DeleteMany(ctx, key("b"), key("c"), key("missing")))
		for _, k := range []string{key("b"), key("c")} {
			_, ok, err := store.Get(ctx, k)
			require.NoError(t, err)
			require.Falsef(t, ok, "%s survived DeleteMany", k)
		}
	})
}
