package cache

import "errors"

var (
	// ErrUnsupportedDriver is surfaced by stores built for an unknown driver.
	ErrUnsupportedDriver = errors.New("cache: unsupported driver")
	// ErrNotStored is returned when the backend does not acknowledge a write.
	ErrNotStored = errors.New("cache: write not acknowledged")
	// ErrInvalidFlexibleTTL is returned when fresh/stale durations are unusable.
	ErrInvalidFlexibleTTL = errors.New("cache: flexible ttl requires 0 < fresh <= stale")
	// ErrGeneratorPanicked wraps a recovered panic from a value generator.
	ErrGeneratorPanicked = errors.New("cache: value generator panicked")
	// ErrMissingCallback is returned when a read-through helper has no generator.
	ErrMissingCallback = errors.New("cache: value generator is required")

	errRedisClientUnavailable   = errors.New("redis cache client unavailable")
	errRueidisClientUnavailable = errors.New("rueidis cache client unavailable")
)
