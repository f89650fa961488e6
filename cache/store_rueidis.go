package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// rueidisStore backs the "rueidis" client variant. The same client serves
// single-node and cluster topologies; routing happens inside rueidis.
type rueidisStore struct {
	client     rueidis.Client
	defaultTTL time.Duration
	prefix     string
}

func newRueidisStore(client rueidis.Client, defaultTTL time.Duration, prefix string) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &rueidisStore{
		client:     client,
		defaultTTL: defaultTTL,
		prefix:     prefix,
	}
}

func (s *rueidisStore) Driver() Driver {
	return DriverRueidis
}

func (s *rueidisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return errRueidisClientUnavailable
	}
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *rueidisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errRueidisClientUnavailable
	}
	value, err := s.client.Do(ctx, s.client.B().Get().Key(s.cacheKey(key)).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *rueidisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return errRueidisClientUnavailable
	}
	cmd := s.client.B().Set().
		Key(s.cacheKey(key)).
		Value(rueidis.BinaryString(value)).
		PxMilliseconds(s.ttl(ttl).Milliseconds()).
		Build()
	status, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		return err
	}
	if status != "OK" {
		return fmt.Errorf("%w: set replied %q", ErrNotStored, status)
	}
	return nil
}

func (s *rueidisStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.client == nil {
		return false, errRueidisClientUnavailable
	}
	cmd := s.client.B().Set().
		Key(s.cacheKey(key)).
		Value(rueidis.BinaryString(value)).
		Nx().
		PxMilliseconds(s.ttl(ttl).Milliseconds()).
		Build()
	err := s.client.Do(ctx, cmd).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *rueidisStore) Delete(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return false, errRueidisClientUnavailable
	}
	removed, err := s.client.Do(ctx, s.client.B().Del().Key(s.cacheKey(key)).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// DeleteMany sends one DEL per key so cluster routing never sees a cross-slot command.
func (s *rueidisStore) DeleteMany(ctx context.Context, keys ...string) error {
	if s.client == nil {
		return errRueidisClientUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	cmds := make(rueidis.Commands, 0, len(keys))
	for _, key := range keys {
		cmds = append(cmds, s.client.B().Del().Key(s.cacheKey(key)).Build())
	}
	var errs []error
	for i, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			errs = append(errs, fmt.Errorf("delete %q: %w", keys[i], err))
		}
	}
	return errors.Join(errs...)
}

func (s *rueidisStore) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func (s *rueidisStore) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

func (s *rueidisStore) cacheKey(key string) string {
	return s.prefix + ":" + key
}
