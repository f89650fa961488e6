package connect

import (
	"context"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/goforj/cacheprobe/cache"
	"github.com/goforj/cacheprobe/connspec"
)

// openGoRedis builds the client lazily; go-redis dials on first command, so
// the PING in Connect is the first network round trip. ContextTimeoutEnabled
// lets the connect deadline reach socket reads during the handshake.
func openGoRedis(spec connspec.Spec) (backend, error) {
	var client redis.UniversalClient
	switch spec.Topology() {
	case connspec.TopologyCluster:
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:                 spec.Addrs(),
			Username:              spec.Username(),
			Password:              spec.Password(),
			DialTimeout:           spec.ConnectTimeout(),
			ReadTimeout:           spec.CommandTimeout(),
			WriteTimeout:          spec.CommandTimeout(),
			ContextTimeoutEnabled: true,
			TLSConfig:             tlsConfig(spec),
		})
	default:
		db, _ := spec.Database()
		client = redis.NewClient(&redis.Options{
			Addr:                  spec.Endpoint(),
			Username:              spec.Username(),
			Password:              spec.Password(),
			DB:                    db,
			DialTimeout:           spec.ConnectTimeout(),
			ReadTimeout:           spec.CommandTimeout(),
			WriteTimeout:          spec.CommandTimeout(),
			ContextTimeoutEnabled: true,
			TLSConfig:             tlsConfig(spec),
		})
	}

	store := cache.NewGoRedisStore(context.Background(), client, cache.WithPrefix(spec.Prefix()))
	return backend{
		store:    store,
		locker:   cache.NewRedsyncLocker(client, spec.Prefix()),
		describe: describeGoRedis(client),
	}, nil
}

func describeGoRedis(client redis.UniversalClient) func(context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		cluster, ok := client.(*redis.ClusterClient)
		if !ok {
			if single, ok := client.(*redis.Client); ok {
				return []string{single.Options().Addr}, nil
			}
			return nil, nil
		}
		var (
			mu      sync.Mutex
			masters []string
		)
		err := cluster.ForEachMaster(ctx, func(_ context.Context, node *redis.Client) error {
			mu.Lock()
			masters = append(masters, node.Options().Addr)
			mu.Unlock()
			return nil
		})
		sort.Strings(masters)
		return masters, err
	}
}
