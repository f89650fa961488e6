package probe_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/goforj/cacheprobe/cache"
	"github.com/goforj/cacheprobe/cachefake"
	"github.com/goforj/cacheprobe/probe"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func requireProbeError(t *testing.T, err error, op probe.Operation, kind probe.Kind) *probe.ProbeError {
	t.Helper()
	var probeErr *probe.ProbeError
	require.True(t, errors.As(err, &probeErr), "expected ProbeError, got %v", err)
	require.Equal(t, op, probeErr.Operation)
	require.Equal(t, kind, probeErr.Kind, "error: %v", err)
	return probeErr
}

func operations(outcomes []probe.Outcome) []probe.Operation {
	ops := make([]probe.Operation, 0, len(outcomes))
	for _, o := range outcomes {
		ops = append(ops, o.Operation)
	}
	return ops
}

func TestRunSucceeds(t *testing.T) {
	t.Parallel()

	for _, concurrent := range []bool{false, true} {
		f := cachefake.New()
		outcomes, err := probe.NewRunner(probe.Config{Concurrent: concurrent}).
			Run(context.Background(), f.Cache(), "ns")
		require.NoError(t, err)
		require.Equal(t, []probe.Operation{probe.OpSet, probe.OpGet, probe.OpDelete, probe.OpFlexibleRead}, operations(outcomes))

		require.Equal(t, probe.DefaultValue, outcomes[1].Value)
		flex := outcomes[3]
		require.True(t, flex.Success)
		require.Equal(t, "Generated value #1", flex.Value)
		require.Equal(t, 1, flex.Generations)
		require.False(t, flex.ServedStale)

		f.AssertCalled(t, cachefake.OpSet, "ns:connection", 1)
		f.AssertCalled(t, cachefake.OpDelete, "ns:connection", 1)
		for _, key := range cache.FlexibleKeys("ns:flexible") {
			_, ok, _ := f.Store().Get(context.Background(), key)
			require.False(t, ok, "expected %s cleaned up", key)
		}
	}
}

func TestRunIsRepeatable(t *testing.T) {
	t.Parallel()

	f := cachefake.New()
	runner := probe.NewRunner(probe.Config{})
	for i := 0; i < 3; i++ {
		_, err := runner.Run(context.Background(), f.Cache(), "ns")
		require.NoError(t, err, "run %d", i)
		_, ok, err := f.Cache().Get("ns:connection")
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestRunRevalidatesExactlyOnce(t *testing.T) {
	t.Parallel()

	for _, concurrent := range []bool{false, true} {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		f := cachefake.New()
		f.Cache().WithClock(clock.Now)

		outcomes, err := probe.NewRunner(probe.Config{
			Concurrent: concurrent,
			Revalidate: true,
			Sleep:      clock.Sleep,
		}).Run(context.Background(), f.Cache(), "ns")
		require.NoError(t, err)

		flex := outcomes[len(outcomes)-1]
		require.Equal(t, probe.OpFlexibleRead, flex.Operation)
		require.Equal(t, 2, flex.Generations)
		require.True(t, flex.ServedStale)
		require.Equal(t, "Generated value #1", flex.Value)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	t.Run("unacknowledged write", func(t *testing.T) {
		t.Parallel()

		f := cachefake.New().FailOn(cachefake.OpSet, cache.ErrNotStored)
		outcomes, err := probe.NewRunner(probe.Config{}).Run(context.Background(), f.Cache(), "ns")
		requireProbeError(t, err, probe.OpSet, probe.KindStoreRejected)
		require.Empty(t, outcomes)
		f.AssertTotal(t, cachefake.OpGet, 0)
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()

		f := cachefake.New().FailOn(cachefake.OpSet, errors.New("connection reset by peer"))
		_, err := probe.NewRunner(probe.Config{}).Run(context.Background(), f.Cache(), "ns")
		requireProbeError(t, err, probe.OpSet, probe.KindUnexpectedException)
	})

	t.Run("read back differs", func(t *testing.T) {
		t.Parallel()

		f := cachefake.New().TamperGet(func(_ string, _ []byte, ok bool) ([]byte, bool) {
			return []byte("corrupted"), ok
		})
		outcomes, err := probe.NewRunner(probe.Config{}).Run(context.Background(), f.Cache(), "ns")
		requireProbeError(t, err, probe.OpGet, probe.KindValueMismatch)
		require.Equal(t, []probe.Operation{probe.OpSet}, operations(outcomes))
		f.AssertTotal(t, cachefake.OpDelete, 0)
	})

	t.Run("read back absent", func(t *testing.T) {
		t.Parallel()

		f := cachefake.New().TamperGet(func(string, []byte, bool) ([]byte, bool) { return nil, false })
		_, err := probe.NewRunner(probe.Config{}).Run(context.Background(), f.Cache(), "ns")
		requireProbeError(t, err, probe.OpGet, probe.KindValueMismatch)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		t.Parallel()

		f := cachefake.New().PanicOn(cachefake.OpGet, "driver exploded")
		outcomes, err := probe.NewRunner(probe.Config{}).Run(context.Background(), f.Cache(), "ns")
		pe := requireProbeError(t, err, probe.OpGet, probe.KindUnexpectedException)
		require.Contains(t, pe.Message, "driver exploded")
		require.Len(t, outcomes, 1)
	})

	t.Run("server error reply", func(t *testing.T) {
		t.Parallel()

		srv := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		c := cache.NewCache(cache.NewGoRedisStore(context.Background(), client))
		srv.SetError("OOM command not allowed when used memory > 'maxmemory'.")

		_, err := probe.NewRunner(probe.Config{}).Run(context.Background(), c, "ns")
		requireProbeError(t, err, probe.OpSet, probe.KindStoreRejected)
	})
}

type silentDelete struct{ *cache.Cache }

func (silentDelete) DeleteCtx(context.Context, string) (bool, error) { return false, nil }

type sloppyFlexible struct{ *cache.Cache }

func (s sloppyFlexible) FlexibleCtx(ctx context.Context, key string, ttl cache.FlexibleTTL, fn func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	_, _ = fn(ctx)
	body, err := fn(ctx)
	return body, false, err
}

type panickyFlexible struct{ *cache.Cache }

func (panickyFlexible) FlexibleCtx(context.Context, string, cache.FlexibleTTL, func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	panic("flexible blew up")
}

func TestRunTargetContractViolations(t *testing.T) {
	t.Parallel()

	t.Run("delete not reported", func(t *testing.T) {
		t.Parallel()

		_, err := probe.NewRunner(probe.Config{}).Run(context.Background(), silentDelete{cachefake.New().Cache()}, "ns")
		requireProbeError(t, err, probe.OpDelete, probe.KindStoreRejected)
	})

	t.Run("generator runs more than once", func(t *testing.T) {
		t.Parallel()

		outcomes, err := probe.NewRunner(probe.Config{}).Run(context.Background(), sloppyFlexible{cachefake.New().Cache()}, "ns")
		requireProbeError(t, err, probe.OpFlexibleRead, probe.KindValueMismatch)
		require.Len(t, outcomes, 3)
	})

	t.Run("concurrent panic is recovered", func(t *testing.T) {
		t.Parallel()

		_, err := probe.NewRunner(probe.Config{Concurrent: true}).Run(context.Background(), panickyFlexible{cachefake.New().Cache()}, "ns")
		requireProbeError(t, err, probe.OpFlexibleRead, probe.KindUnexpectedException)
	})
}

func TestRunnerDefaults(t *testing.T) {
	t.Parallel()

	cfg := probe.NewRunner(probe.Config{}).Config()
	require.Equal(t, probe.DefaultValue, cfg.Value)
	require.Equal(t, probe.DefaultCalls, cfg.Calls)
	require.Equal(t, probe.DefaultFresh, cfg.Fresh)
	require.Equal(t, probe.DefaultStale, cfg.Stale)
	require.NotNil(t, cfg.Sleep)
}
