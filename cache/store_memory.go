package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var errMemoryStoreClosed = errors.New("memory cache store closed")

// memoryStore backs the "memory" client variant used for dry runs.
type memoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
	prefix     string
	closed     chan struct{}
	closeOnce  sync.Once
}

// newMemoryStore namespaces keys as prefix:key, matching the redis stores.
func newMemoryStore(defaultTTL, cleanupInterval time.Duration, prefix string) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryStore{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
		prefix:     prefix,
		closed:     make(chan struct{}),
	}
}

func (s *memoryStore) Driver() Driver {
	return DriverMemory
}

func (s *memoryStore) Ping(_ context.Context) error {
	if s.isClosed() {
		return errMemoryStoreClosed
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.isClosed() {
		return nil, false, errMemoryStoreClosed
	}
	item, ok := s.cache.Get(s.key(key))
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.isClosed() {
		return errMemoryStoreClosed
	}
	s.cache.Set(s.key(key), cloneBytes(value), s.ttl(ttl))
	return nil
}

func (s *memoryStore) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.isClosed() {
		return false, errMemoryStoreClosed
	}
	if err := s.cache.Add(s.key(key), cloneBytes(value), s.ttl(ttl)); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	if s.isClosed() {
		return false, errMemoryStoreClosed
	}
	_, found := s.cache.Get(s.key(key))
	if found {
		s.cache.Delete(s.key(key))
	}
	return found, nil
}

func (s *memoryStore) DeleteMany(_ context.Context, keys ...string) error {
	if s.isClosed() {
		return errMemoryStoreClosed
	}
	for _, key := range keys {
		s.cache.Delete(s.key(key))
	}
	return nil
}

func (s *memoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cache.Flush()
	})
	return nil
}

func (s *memoryStore) ttl(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return s.defaultTTL
}

func (s *memoryStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *memoryStore) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func cloneBytes(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
