package cachecore

// Driver identifies the client implementation behind a Store.
type Driver string

const (
	DriverMemory  Driver = "memory"
	DriverGoRedis Driver = "goredis"
	DriverRueidis Driver = "rueidis"
)
