package cache

import "github.com/goforj/cacheprobe/cachecore"

// Driver identifies cache backend.
type Driver = cachecore.Driver

// Store is the backend contract wrapped by Cache.
type Store = cachecore.Store

const (
	DriverMemory  = cachecore.DriverMemory
	DriverGoRedis = cachecore.DriverGoRedis
	DriverRueidis = cachecore.DriverRueidis
)
