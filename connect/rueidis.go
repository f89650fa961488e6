package connect

import (
	"context"
	"net"
	"sort"

	"github.com/redis/rueidis"

	"github.com/goforj/cacheprobe/cache"
	"github.com/goforj/cacheprobe/connspec"
)

// openRueidis dials during construction, so it runs under ctx. A client that
// finishes after ctx expired is closed in the background.
func openRueidis(ctx context.Context, spec connspec.Spec) (backend, error) {
	db, _ := spec.Database()
	opt := rueidis.ClientOption{
		InitAddress:       spec.Addrs(),
		Username:          spec.Username(),
		Password:          spec.Password(),
		SelectDB:          db,
		TLSConfig:         tlsConfig(spec),
		Dialer:            net.Dialer{Timeout: spec.ConnectTimeout()},
		ConnWriteTimeout:  spec.CommandTimeout(),
		DisableCache:      true,
		ForceSingleClient: spec.Topology() == connspec.TopologySingle,
	}

	done := make(chan dialResult, 1)
	go func() {
		client, err := rueidis.NewClient(opt)
		done <- dialResult{client: client, err: err}
	}()

	var client rueidis.Client
	select {
	case res := <-done:
		if res.err != nil {
			return backend{}, res.err
		}
		client = res.client
	case <-ctx.Done():
		go func() { discardLate(<-done) }()
		return backend{}, ctx.Err()
	}

	store := cache.NewRueidisStore(ctx, client, cache.WithPrefix(spec.Prefix()))
	return backend{
		store:    store,
		describe: describeRueidis(client),
	}, nil
}

type dialResult struct {
	client rueidis.Client
	err    error
}

// discardLate closes a client that finished dialing after the caller gave up.
// A failed NewClient returns a typed nil inside the interface, so err is the
// only reliable signal that there is nothing to close.
func discardLate(res dialResult) {
	if res.err == nil && res.client != nil {
		res.client.Close()
	}
}

func describeRueidis(client rueidis.Client) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		nodes := client.Nodes()
		addrs := make([]string, 0, len(nodes))
		for addr := range nodes {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)
		return addrs, nil
	}
}
