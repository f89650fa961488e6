package probe

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/redis/rueidis"

	"github.com/goforj/cacheprobe/cache"
)

// Kind classifies a failed probe.
type Kind string

const (
	KindStoreRejected       Kind = "StoreRejected"
	KindValueMismatch       Kind = "ValueMismatch"
	KindUnexpectedException Kind = "UnexpectedException"
)

// ProbeError stops a probe run at Operation.
type ProbeError struct {
	Operation Operation
	Kind      Kind
	Message   string
	Err       error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("probe %s %s: %s", e.Operation, e.Kind, e.Message)
	}
	return fmt.Sprintf("probe %s %s: %s: %v", e.Operation, e.Kind, e.Message, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func mismatch(op Operation, format string, args ...any) *ProbeError {
	return &ProbeError{Operation: op, Kind: KindValueMismatch, Message: fmt.Sprintf(format, args...)}
}

// storeFailure wraps an error returned by the target. Server error replies
// and unacknowledged writes are StoreRejected; transport failures, timeouts
// and generator panics are UnexpectedException.
func storeFailure(op Operation, message string, err error) *ProbeError {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr
	}
	return &ProbeError{Operation: op, Kind: storeKind(err), Message: message, Err: err}
}

func storeKind(err error) Kind {
	if errors.Is(err, cache.ErrNotStored) {
		return KindStoreRejected
	}
	if errors.Is(err, cache.ErrGeneratorPanicked) {
		return KindUnexpectedException
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return KindStoreRejected
	}
	var rueidisErr *rueidis.RedisError
	if errors.As(err, &rueidisErr) {
		return KindStoreRejected
	}
	return KindUnexpectedException
}
