// Package probe runs ordered correctness checks against a live cache.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goforj/cacheprobe/cache"
)

// Operation names one probe step.
type Operation string

const (
	OpSet          Operation = "set"
	OpGet          Operation = "get"
	OpDelete       Operation = "delete"
	OpFlexibleRead Operation = "flexible_read"
)

// Target is the cache capability set the runner exercises. *cache.Cache
// satisfies it.
type Target interface {
	SetCtx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetCtx(ctx context.Context, key string) ([]byte, bool, error)
	DeleteCtx(ctx context.Context, key string) (bool, error)
	FlexibleCtx(ctx context.Context, key string, ttl cache.FlexibleTTL, fn func(context.Context) ([]byte, error)) ([]byte, bool, error)
	Wait()
}

var _ Target = (*cache.Cache)(nil)

// Outcome is the result of one successful step.
type Outcome struct {
	Operation   Operation     `json:"operation"`
	Success     bool          `json:"success"`
	Value       string        `json:"value,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	Generations int           `json:"generations,omitempty"`
	ServedStale bool          `json:"served_stale,omitempty"`
}

// Config tunes a Runner. Zero fields take defaults.
type Config struct {
	// Value is written by the set step. Defaults to "cacheprobe-test-value".
	Value string
	// TTL of the written key. Defaults to one minute.
	TTL time.Duration
	// Fresh and Stale bound the flexible read. Default 30s and 60s.
	Fresh time.Duration
	Stale time.Duration
	// Calls is the number of flexible reads per phase. Defaults to 5.
	Calls int
	// Concurrent issues the flexible reads of a phase in parallel.
	Concurrent bool
	// Revalidate adds a second phase after sleeping past Fresh and expects
	// exactly one background regeneration.
	Revalidate bool
	// Sleep waits out the fresh window. Defaults to time.Sleep; tests pass a
	// hook that advances a fake clock.
	Sleep func(time.Duration)
	// CommandTimeout bounds each cache call. Defaults to 3s.
	CommandTimeout time.Duration
}

const (
	DefaultValue          = "cacheprobe-test-value"
	DefaultCalls          = 5
	DefaultFresh          = 30 * time.Second
	DefaultStale          = 60 * time.Second
	defaultTTL            = time.Minute
	defaultCommandTimeout = 3 * time.Second
	revalidateMargin      = time.Second
)

func (c Config) withDefaults() Config {
	if c.Value == "" {
		c.Value = DefaultValue
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.Fresh <= 0 {
		c.Fresh = DefaultFresh
	}
	if c.Stale <= 0 {
		c.Stale = DefaultStale
	}
	if c.Calls <= 0 {
		c.Calls = DefaultCalls
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
	return c
}

// Runner executes the probe sequence.
type Runner struct {
	cfg Config
}

// NewRunner returns a Runner with cfg defaults applied.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run executes set, get, delete and flexible_read in order under namespace.
// The first failure stops the run; the outcomes gathered so far are returned
// with a *ProbeError. Panics raised by the target are recovered.
func (r *Runner) Run(ctx context.Context, target Target, namespace string) (outcomes []Outcome, err error) {
	current := OpSet
	defer func() {
		if rec := recover(); rec != nil {
			err = &ProbeError{
				Operation: current,
				Kind:      KindUnexpectedException,
				Message:   fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	steps := []struct {
		op  Operation
		run func(context.Context, Target, string) (Outcome, error)
	}{
		{OpSet, r.probeSet},
		{OpGet, r.probeGet},
		{OpDelete, r.probeDelete},
		{OpFlexibleRead, r.probeFlexible},
	}
	for _, step := range steps {
		current = step.op
		outcome, err := step.run(ctx, target, namespace)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (r *Runner) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.CommandTimeout)
}

func connectionKey(namespace string) string { return namespace + ":connection" }
func flexibleKey(namespace string) string   { return namespace + ":flexible" }

func (r *Runner) probeSet(ctx context.Context, target Target, namespace string) (Outcome, error) {
	start := time.Now()
	callCtx, cancel := r.call(ctx)
	defer cancel()
	if err := target.SetCtx(callCtx, connectionKey(namespace), []byte(r.cfg.Value), r.cfg.TTL); err != nil {
		return Outcome{}, storeFailure(OpSet, "write test value", err)
	}
	return Outcome{Operation: OpSet, Success: true, Value: r.cfg.Value, Elapsed: time.Since(start)}, nil
}

func (r *Runner) probeGet(ctx context.Context, target Target, namespace string) (Outcome, error) {
	start := time.Now()
	callCtx, cancel := r.call(ctx)
	defer cancel()
	body, ok, err := target.GetCtx(callCtx, connectionKey(namespace))
	if err != nil {
		return Outcome{}, storeFailure(OpGet, "read test value", err)
	}
	if !ok {
		return Outcome{}, mismatch(OpGet, "key %s absent after write", connectionKey(namespace))
	}
	if !bytes.Equal(body, []byte(r.cfg.Value)) {
		return Outcome{}, mismatch(OpGet, "read %q, wrote %q", body, r.cfg.Value)
	}
	return Outcome{Operation: OpGet, Success: true, Value: string(body), Elapsed: time.Since(start)}, nil
}

func (r *Runner) probeDelete(ctx context.Context, target Target, namespace string) (Outcome, error) {
	start := time.Now()
	callCtx, cancel := r.call(ctx)
	defer cancel()
	key := connectionKey(namespace)
	removed, err := target.DeleteCtx(callCtx, key)
	if err != nil {
		return Outcome{}, storeFailure(OpDelete, "delete test value", err)
	}
	if !removed {
		return Outcome{}, &ProbeError{Operation: OpDelete, Kind: KindStoreRejected, Message: "store did not report removal of " + key}
	}
	_, ok, err := target.GetCtx(callCtx, key)
	if err != nil {
		return Outcome{}, storeFailure(OpDelete, "read after delete", err)
	}
	if ok {
		return Outcome{}, mismatch(OpDelete, "key %s still present after delete", key)
	}
	return Outcome{Operation: OpDelete, Success: true, Elapsed: time.Since(start)}, nil
}

type flexibleRead struct {
	value string
	stale bool
	err   error
}

func (r *Runner) probeFlexible(ctx context.Context, target Target, namespace string) (Outcome, error) {
	start := time.Now()
	key := flexibleKey(namespace)
	ttl := cache.FlexibleTTL{Fresh: r.cfg.Fresh, Stale: r.cfg.Stale}
	defer r.forget(ctx, target, key)

	var generations atomic.Int64
	gen := func(context.Context) ([]byte, error) {
		n := generations.Add(1)
		return []byte(fmt.Sprintf("Generated value #%d", n)), nil
	}

	first := r.readPhase(ctx, target, key, ttl, gen)
	for _, read := range first {
		if read.err != nil {
			return Outcome{}, storeFailure(OpFlexibleRead, "flexible read", read.err)
		}
	}
	if n := generations.Load(); n != 1 {
		return Outcome{}, mismatch(OpFlexibleRead, "generator ran %d times across %d reads, want 1", n, len(first))
	}
	value := first[0].value
	for i, read := range first {
		if read.value != value {
			return Outcome{}, mismatch(OpFlexibleRead, "read %d returned %q, read 0 returned %q", i, read.value, value)
		}
	}

	outcome := Outcome{Operation: OpFlexibleRead, Success: true, Value: value, Generations: 1}
	if r.cfg.Revalidate {
		r.cfg.Sleep(r.cfg.Fresh + revalidateMargin)
		second := r.readPhase(ctx, target, key, ttl, gen)
		target.Wait()
		for _, read := range second {
			if read.err != nil {
				return Outcome{}, storeFailure(OpFlexibleRead, "flexible read after fresh window", read.err)
			}
			outcome.ServedStale = outcome.ServedStale || read.stale
		}
		if !outcome.ServedStale {
			return Outcome{}, mismatch(OpFlexibleRead, "no stale value served after the fresh window")
		}
		if n := generations.Load(); n != 2 {
			return Outcome{}, mismatch(OpFlexibleRead, "generator ran %d times after revalidation, want 2", n)
		}
		outcome.Generations = 2
	}
	outcome.Elapsed = time.Since(start)
	return outcome, nil
}

func (r *Runner) readPhase(ctx context.Context, target Target, key string, ttl cache.FlexibleTTL, gen func(context.Context) ([]byte, error)) []flexibleRead {
	reads := make([]flexibleRead, r.cfg.Calls)
	read := func(i int) {
		defer func() {
			if rec := recover(); rec != nil {
				reads[i] = flexibleRead{err: &ProbeError{
					Operation: OpFlexibleRead,
					Kind:      KindUnexpectedException,
					Message:   fmt.Sprintf("panic: %v", rec),
				}}
			}
		}()
		callCtx, cancel := r.call(ctx)
		defer cancel()
		body, stale, err := target.FlexibleCtx(callCtx, key, ttl, gen)
		reads[i] = flexibleRead{value: string(body), stale: stale, err: err}
	}
	if !r.cfg.Concurrent {
		for i := range reads {
			read(i)
		}
		return reads
	}
	var wg sync.WaitGroup
	for i := range reads {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			read(i)
		}(i)
	}
	wg.Wait()
	return reads
}

// forget removes flexible keys once background refreshes have settled.
func (r *Runner) forget(ctx context.Context, target Target, key string) {
	target.Wait()
	callCtx, cancel := r.call(ctx)
	defer cancel()
	for _, k := range cache.FlexibleKeys(key) {
		_, _ = target.DeleteCtx(callCtx, k)
	}
}
