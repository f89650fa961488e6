package cachecore

import (
	"context"
	"time"
)

// Store is the shared cache contract probed by the harness.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete reports whether key was present before removal.
	Delete(ctx context.Context, key string) (bool, error)
	DeleteMany(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}
