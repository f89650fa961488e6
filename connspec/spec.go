// Package connspec turns flat connection options into an immutable Spec.
package connspec

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/goforj/cacheprobe/cachecore"
)

// Topology is how the store is addressed.
type Topology string

const (
	TopologySingle  Topology = "single"
	TopologyCluster Topology = "cluster"
)

// Scheme is the transport between client and store.
type Scheme string

const (
	SchemeTCP Scheme = "tcp"
	SchemeTLS Scheme = "tls"
)

const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 6379
	DefaultPrefix         = "cacheprobe"
	DefaultConnectTimeout = 3 * time.Second
	DefaultCommandTimeout = 3 * time.Second
)

// Node is one store endpoint.
type Node struct {
	Host string
	Port int
}

// String returns host:port.
func (n Node) String() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// Spec is a validated connection descriptor. The zero value is not usable;
// build one with Build. Accessors return copies so a Spec can be passed by
// value without sharing state.
type Spec struct {
	topology       Topology
	client         cachecore.Driver
	host           string
	port           int
	scheme         Scheme
	username       string
	password       string
	database       int
	hasDatabase    bool
	nodes          []Node
	prefix         string
	connectTimeout time.Duration
	commandTimeout time.Duration
	tlsServerName  string
	tlsInsecure    bool
}

func (s Spec) Topology() Topology       { return s.topology }
func (s Spec) Client() cachecore.Driver { return s.client }
func (s Spec) Host() string             { return s.host }
func (s Spec) Port() int                { return s.port }
func (s Spec) Scheme() Scheme           { return s.scheme }
func (s Spec) Username() string         { return s.username }
func (s Spec) Password() string         { return s.password }
func (s Spec) Prefix() string           { return s.prefix }
func (s Spec) ConnectTimeout() time.Duration {
	return s.connectTimeout
}
func (s Spec) CommandTimeout() time.Duration {
	return s.commandTimeout
}
func (s Spec) TLSInsecure() bool { return s.tlsInsecure }

// Database returns the logical database and whether one was configured.
func (s Spec) Database() (int, bool) { return s.database, s.hasDatabase }

// TLS reports whether the scheme is tls.
func (s Spec) TLS() bool { return s.scheme == SchemeTLS }

// TLSServerName defaults to the host.
func (s Spec) TLSServerName() string {
	if s.tlsServerName != "" {
		return s.tlsServerName
	}
	return s.host
}

// Endpoint is the primary host:port.
func (s Spec) Endpoint() string {
	return Node{Host: s.host, Port: s.port}.String()
}

// Nodes returns a copy of the ordered node list. Single topology always has
// exactly one node.
func (s Spec) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Addrs returns Nodes as host:port strings.
func (s Spec) Addrs() []string {
	out := make([]string, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.String())
	}
	return out
}

// String renders the spec without credentials.
func (s Spec) String() string {
	return fmt.Sprintf("%s/%s %s://%s nodes=%s", s.client, s.topology, s.scheme, s.Endpoint(), strings.Join(s.Addrs(), ","))
}

// LogValue implements slog.LogValuer; the password is never emitted.
func (s Spec) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client", string(s.client)),
		slog.String("topology", string(s.topology)),
		slog.String("scheme", string(s.scheme)),
		slog.String("endpoint", s.Endpoint()),
		slog.Any("nodes", s.Addrs()),
		slog.Bool("auth", s.password != ""),
	)
}
