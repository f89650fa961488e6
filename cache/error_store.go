package cache

import (
	"context"
	"time"
)

// errorStore stands in for a store whose construction failed. Every call
// returns the build error; Close is a no-op.
type errorStore struct {
	driver Driver
	err    error
}

func (e *errorStore) Driver() Driver                                    { return e.driver }
func (e *errorStore) Ping(context.Context) error                        { return e.err }
func (e *errorStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, e.err }
func (e *errorStore) Set(context.Context, string, []byte, time.Duration) error {
	return e.err
}
func (e *errorStore) Add(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, e.err
}
func (e *errorStore) Delete(context.Context, string) (bool, error)  { return false, e.err }
func (e *errorStore) DeleteMany(context.Context, ...string) error { return e.err }
func (e *errorStore) Close() error                                { return nil }
