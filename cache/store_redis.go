package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the slice of redis.UniversalClient the go-redis store
// needs. *redis.Client and *redis.ClusterClient both satisfy it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// goRedisStore namespaces keys as prefix:key and maps redis.Nil to a miss.
type goRedisStore struct {
	rdb    RedisClient
	ttl    time.Duration
	prefix string
}

func newRedisStore(client RedisClient, defaultTTL time.Duration, prefix string) Store {
	s := &goRedisStore{rdb: client, ttl: defaultTTL, prefix: prefix}
	if s.ttl <= 0 {
		s.ttl = defaultCacheTTL
	}
	if s.prefix == "" {
		s.prefix = defaultCachePrefix
	}
	return s
}

func (*goRedisStore) Driver() Driver { return DriverGoRedis }

func (s *goRedisStore) client() (RedisClient, error) {
	if s.rdb == nil {
		return nil, errRedisClientUnavailable
	}
	return s.rdb, nil
}

func (s *goRedisStore) expiry(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return s.ttl
}

func (s *goRedisStore) Ping(ctx context.Context) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

func (s *goRedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, false, err
	}
	body, err := rdb.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return body, true, nil
}

// Set treats any reply other than OK as a rejected write.
func (s *goRedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	reply, err := rdb.Set(ctx, s.key(key), value, s.expiry(ttl)).Result()
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%w: SET replied %q", ErrNotStored, reply)
	}
	return nil
}

func (s *goRedisStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	rdb, err := s.client()
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, s.key(key), value, s.expiry(ttl)).Result()
}

func (s *goRedisStore) Delete(ctx context.Context, key string) (bool, error) {
	rdb, err := s.client()
	if err != nil {
		return false, err
	}
	n, err := rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteMany sends one DEL per key so cluster clients never see a
// cross-slot request.
func (s *goRedisStore) DeleteMany(ctx context.Context, keys ...string) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	var errs []error
	for _, key := range keys {
		if err := rdb.Del(ctx, s.key(key)).Err(); err != nil {
			errs = append(errs, fmt.Errorf("delete %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *goRedisStore) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *goRedisStore) key(k string) string { return s.prefix + ":" + k }
