package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/cacheprobe/cache"
	"github.com/stretchr/testify/require"
)

// Op names a store call the fake records.
type Op string

const (
	OpPing       Op = "ping"
	OpGet        Op = "get"
	OpSet        Op = "set"
	OpAdd        Op = "add"
	OpDelete     Op = "delete"
	OpDeleteMany Op = "delete_many"
	OpClose      Op = "close"
)

// Call is one recorded store invocation. Key is empty for ping and close.
type Call struct {
	Op  Op
	Key string
}

// Fake is a memory-backed cache that records every store call and can be
// told to fail, panic or lie about reads. Probes and the harness use it to
// exercise failure classification without a server.
type Fake struct {
	store *countingStore
	cache *cache.Cache

	mu       sync.Mutex
	calls    []Call
	failures map[Op]error
	panics   map[Op]any
	tamper   func(key string, body []byte, ok bool) ([]byte, bool)
}

func New() *Fake {
	f := &Fake{
		failures: make(map[Op]error),
		panics:   make(map[Op]any),
	}
	f.store = &countingStore{inner: cache.NewMemoryStore(context.Background()), fake: f}
	f.cache = cache.NewCache(f.store)
	return f
}

func (f *Fake) Cache() *cache.Cache { return f.cache }

func (f *Fake) Store() cache.Store { return f.store }

// FailOn makes every later call of op return err. A nil err clears it.
func (f *Fake) FailOn(op Op, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
	} else {
		f.failures[op] = err
	}
	return f
}

// PanicOn makes every later call of op panic with v.
func (f *Fake) PanicOn(op Op, v any) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[op] = v
	return f
}

// TamperGet lets fn rewrite what Get returns.
func (f *Fake) TamperGet(fn func(key string, body []byte, ok bool) ([]byte, bool)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tamper = fn
	return f
}

// Reset forgets recorded calls and every injected fault.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.failures = make(map[Op]error)
	f.panics = make(map[Op]any)
	f.tamper = nil
}

// Calls returns the recorded invocations in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) AssertCalled(t testing.TB, op Op, key string, times int) {
	t.Helper()
	require.Equalf(t, times, f.Count(op, key), "%s %q call count", op, key)
}

func (f *Fake) AssertNotCalled(t testing.TB, op Op, key string) {
	t.Helper()
	require.Zerof(t, f.Count(op, key), "%s %q should not be called", op, key)
}

func (f *Fake) AssertTotal(t testing.TB, op Op, times int) {
	t.Helper()
	require.Equalf(t, times, f.Total(op), "%s calls across all keys", op)
}

// Count is the number of op calls on key.
func (f *Fake) Count(op Op, key string) int {
	return f.count(func(c Call) bool { return c.Op == op && c.Key == key })
}

// Total is the number of op calls on any key.
func (f *Fake) Total(op Op) int {
	return f.count(func(c Call) bool { return c.Op == op })
}

func (f *Fake) count(match func(Call) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if match(c) {
			n++
		}
	}
	return n
}

// enter records the call, then panics or returns the injected error for op.
func (f *Fake) enter(op Op, key string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Key: key})
	p, shouldPanic := f.panics[op]
	err := f.failures[op]
	f.mu.Unlock()
	if shouldPanic {
		panic(p)
	}
	return err
}

func (f *Fake) tampered(key string, body []byte, ok bool) ([]byte, bool) {
	f.mu.Lock()
	fn := f.tamper
	f.mu.Unlock()
	if fn == nil {
		return body, ok
	}
	return fn(key, body, ok)
}

// countingStore routes every call through Fake.enter before the memory store.
type countingStore struct {
	inner cache.Store
	fake  *Fake
}

func (s *countingStore) Driver() cache.Driver { return s.inner.Driver() }

func (s *countingStore) Ping(ctx context.Context) error {
	if err := s.fake.enter(OpPing, ""); err != nil {
		return err
	}
	return s.inner.Ping(ctx)
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.fake.enter(OpGet, key); err != nil {
		return nil, false, err
	}
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	body, ok = s.fake.tampered(key, body, ok)
	return body, ok, nil
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.fake.enter(OpSet, key); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, value, ttl)
}

func (s *countingStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.fake.enter(OpAdd, key); err != nil {
		return false, err
	}
	return s.inner.Add(ctx, key, value, ttl)
}

func (s *countingStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.fake.enter(OpDelete, key); err != nil {
		return false, err
	}
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) DeleteMany(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.fake.enter(OpDeleteMany, key); err != nil {
			return err
		}
	}
	return s.inner.DeleteMany(ctx, keys...)
}

func (s *countingStore) Close() error {
	if err := s.fake.enter(OpClose, ""); err != nil {
		return err
	}
	return s.inner.Close()
}
