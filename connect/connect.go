// Package connect opens a live cache handle for a connspec.Spec.
package connect

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/goforj/cacheprobe/cache"
	"github.com/goforj/cacheprobe/cachecore"
	"github.com/goforj/cacheprobe/connspec"
)

// Options tune handle construction. The zero value is ready to use.
type Options struct {
	// Observer receives every cache operation on the handle.
	Observer cache.Observer
	// Clock drives flexible-read freshness. Defaults to time.Now.
	Clock func() time.Time
}

// backend is what a client variant hands back to Connect.
type backend struct {
	store    cache.Store
	locker   cache.Locker
	describe func(context.Context) ([]string, error)
}

// Connect opens a session described by spec and verifies it with PING.
//
// The whole attempt, including client construction, is bounded by the spec's
// connect timeout. Every failure is a *ConnectionError.
func Connect(ctx context.Context, spec connspec.Spec, opts Options) (*Handle, error) {
	connectCtx, cancel := context.WithTimeout(ctx, spec.ConnectTimeout())
	defer cancel()

	var (
		b   backend
		err error
	)
	switch spec.Client() {
	case cachecore.DriverGoRedis:
		b, err = openGoRedis(spec)
	case cachecore.DriverRueidis:
		b, err = openRueidis(connectCtx, spec)
	case cachecore.DriverMemory:
		b = openMemory(connectCtx, spec)
	default:
		err = fmt.Errorf("%w: %q", errUnsupportedClient, spec.Client())
	}
	if err != nil {
		return nil, classify(connectCtx, "open "+string(spec.Client())+" client", err)
	}

	if err := b.store.Ping(connectCtx); err != nil {
		_ = b.store.Close()
		return nil, classify(connectCtx, "ping "+spec.Endpoint(), err)
	}

	c := cache.NewCache(b.store).WithObserver(opts.Observer).WithClock(opts.Clock)
	if b.locker != nil {
		c = c.WithLocker(b.locker)
	}
	return &Handle{spec: spec, cache: c, describe: b.describe}, nil
}

func openMemory(ctx context.Context, spec connspec.Spec) backend {
	store := cache.NewMemoryStore(ctx, cache.WithPrefix(spec.Prefix()))
	return backend{
		store: store,
		describe: func(context.Context) ([]string, error) {
			return []string{"memory"}, nil
		},
	}
}

func tlsConfig(spec connspec.Spec) *tls.Config {
	if !spec.TLS() {
		return nil
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         spec.TLSServerName(),
		InsecureSkipVerify: spec.TLSInsecure(),
	}
}

// Handle owns one live cache session.
type Handle struct {
	spec     connspec.Spec
	cache    *cache.Cache
	describe func(context.Context) ([]string, error)

	closeOnce sync.Once
	closeErr  error
}

// Cache returns the cache bound to this session.
func (h *Handle) Cache() *cache.Cache { return h.cache }

// Spec returns the spec the handle was opened with.
func (h *Handle) Spec() connspec.Spec { return h.spec }

// Close waits for background refreshes and releases the session. Later calls
// return the first result.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.cache.Close()
	})
	return h.closeErr
}

// Diagnostics describe a live session.
type Diagnostics struct {
	Driver   cachecore.Driver  `json:"driver"`
	Topology connspec.Topology `json:"topology"`
	Seeds    []string          `json:"seeds"`
	Masters  []string          `json:"masters,omitempty"`
}

// Describe reports the driver and, for clusters, the masters the client
// currently routes to.
func (h *Handle) Describe(ctx context.Context) (Diagnostics, error) {
	d := Diagnostics{
		Driver:   h.spec.Client(),
		Topology: h.spec.Topology(),
		Seeds:    h.spec.Addrs(),
	}
	if h.describe == nil {
		return d, nil
	}
	masters, err := h.describe(ctx)
	if err != nil {
		return d, fmt.Errorf("describe %s: %w", h.spec.Client(), err)
	}
	d.Masters = masters
	return d, nil
}
