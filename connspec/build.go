package connspec

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goforj/cacheprobe/cachecore"
)

// Build validates options and returns a Spec. It has no side effects.
//
// Unset keys take the documented defaults. Keys in the required-if-present set
// fail with *ConfigError when given a blank value; other blank keys count as
// unset. REDIS_URL fills endpoint, credentials, database and scheme; explicit
// keys override it.
func Build(options map[string]string) (Spec, error) {
	in, err := newLookup(options)
	if err != nil {
		return Spec{}, err
	}

	s := Spec{
		topology:       TopologySingle,
		client:         cachecore.DriverGoRedis,
		host:           DefaultHost,
		port:           DefaultPort,
		scheme:         SchemeTCP,
		prefix:         DefaultPrefix,
		connectTimeout: DefaultConnectTimeout,
		commandTimeout: DefaultCommandTimeout,
	}

	if raw, ok := in.get(KeyURL); ok {
		if err := s.applyURL(raw); err != nil {
			return Spec{}, err
		}
	}
	if raw, ok := in.get(KeyConnectionType); ok {
		topology, err := parseTopology(raw)
		if err != nil {
			return Spec{}, err
		}
		s.topology = topology
	}
	if raw, ok := in.get(KeyClient); ok {
		client, err := parseClient(raw)
		if err != nil {
			return Spec{}, err
		}
		s.client = client
	}
	if raw, ok := in.get(KeyHost); ok {
		s.host = raw
	}
	if raw, ok := in.get(KeyPort); ok {
		port, err := parsePort(KeyPort, raw)
		if err != nil {
			return Spec{}, err
		}
		s.port = port
	}
	if raw, ok := in.get(KeyScheme); ok {
		scheme, err := parseScheme(raw)
		if err != nil {
			return Spec{}, err
		}
		s.scheme = scheme
	}
	if raw, ok := in.get(KeyUsername); ok {
		s.username = raw
	}
	if raw, ok := in.get(KeyPassword); ok {
		s.password = raw
	}
	if raw, ok := in.get(KeyDatabase); ok {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			return Spec{}, configErrorf(KeyDatabase, "must be a non-negative integer, got %q", raw)
		}
		s.database, s.hasDatabase = db, true
	}
	if raw, ok := in.get(KeyPrefix); ok {
		s.prefix = raw
	}
	if raw, ok := in.get(KeyConnectTimeout); ok {
		d, err := parseTimeout(KeyConnectTimeout, raw)
		if err != nil {
			return Spec{}, err
		}
		s.connectTimeout = d
	}
	if raw, ok := in.get(KeyCommandTimeout); ok {
		d, err := parseTimeout(KeyCommandTimeout, raw)
		if err != nil {
			return Spec{}, err
		}
		s.commandTimeout = d
	}
	if raw, ok := in.get(KeyTLSServerName); ok {
		s.tlsServerName = raw
	}
	if raw, ok := in.get(KeyTLSInsecure); ok {
		insecure, err := strconv.ParseBool(raw)
		if err != nil {
			return Spec{}, configErrorf(KeyTLSInsecure, "must be a boolean, got %q", raw)
		}
		s.tlsInsecure = insecure
	}

	seed := Node{Host: s.host, Port: s.port}
	switch s.topology {
	case TopologySingle:
		s.nodes = []Node{seed}
	case TopologyCluster:
		if s.hasDatabase && s.database != 0 {
			return Spec{}, configErrorf(KeyDatabase, "cluster mode only supports database 0, got %d", s.database)
		}
		raw, present := in.get(KeyClusterNodes)
		if !present {
			s.nodes = []Node{seed}
			break
		}
		nodes, err := parseNodes(raw, s.port)
		if err != nil {
			return Spec{}, err
		}
		s.nodes = nodes
	}
	return s, nil
}

type lookup map[string]string

// newLookup trims every value and rejects blank required-if-present keys.
// Blank optional keys are dropped.
func newLookup(options map[string]string) (lookup, error) {
	out := make(lookup, len(options))
	for _, key := range Keys() {
		raw, present := options[key]
		if !present {
			continue
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			if requiredIfPresent[key] {
				return nil, configErrorf(key, "must not be empty when set")
			}
			continue
		}
		out[key] = value
	}
	return out, nil
}

func (l lookup) get(key string) (string, bool) {
	v, ok := l[key]
	return v, ok
}

func (s *Spec) applyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return configErrorf(KeyURL, "invalid url: %v", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "redis", "valkey":
		s.scheme = SchemeTCP
	case "rediss", "valkeys":
		s.scheme = SchemeTLS
	default:
		return configErrorf(KeyURL, "unsupported url scheme %q", u.Scheme)
	}
	if host := u.Hostname(); host != "" {
		s.host = host
	}
	if port := u.Port(); port != "" {
		p, err := parsePort(KeyURL, port)
		if err != nil {
			return err
		}
		s.port = p
	}
	if u.User != nil {
		s.username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			s.password = pw
		}
	}
	if path := strings.Trim(u.Path, "/"); path != "" {
		db, err := strconv.Atoi(path)
		if err != nil || db < 0 {
			return configErrorf(KeyURL, "database path must be a non-negative integer, got %q", path)
		}
		s.database, s.hasDatabase = db, true
	}
	return nil
}

func parseTopology(raw string) (Topology, error) {
	switch strings.ToLower(raw) {
	case "single", "default":
		return TopologySingle, nil
	case "cluster", "clusters":
		return TopologyCluster, nil
	}
	return "", configErrorf(KeyConnectionType, "unknown connection type %q (want single or cluster)", raw)
}

func parseClient(raw string) (cachecore.Driver, error) {
	switch strings.ToLower(raw) {
	case "goredis", "go-redis", "phpredis":
		return cachecore.DriverGoRedis, nil
	case "rueidis", "predis", "valkey":
		return cachecore.DriverRueidis, nil
	case "memory":
		return cachecore.DriverMemory, nil
	}
	return "", configErrorf(KeyClient, "unknown client %q (want goredis, rueidis or memory)", raw)
}

func parseScheme(raw string) (Scheme, error) {
	switch strings.ToLower(raw) {
	case "tcp":
		return SchemeTCP, nil
	case "tls", "rediss":
		return SchemeTLS, nil
	}
	return "", configErrorf(KeyScheme, "unknown scheme %q (want tcp or tls)", raw)
}

func parsePort(field, raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, configErrorf(field, "port must be 1..65535, got %q", raw)
	}
	return port, nil
}

func parseTimeout(field, raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, configErrorf(field, "must be positive, got %q", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, configErrorf(field, "must be a duration or whole seconds, got %q", raw)
	}
	if d <= 0 {
		return 0, configErrorf(field, "must be positive, got %q", raw)
	}
	return d, nil
}

// parseNodes splits a comma separated host[:port] list. Blank entries are
// skipped; a list with no entries left is an error.
func parseNodes(raw string, defaultPort int) ([]Node, error) {
	var nodes []Node
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		node, err := parseNode(part, defaultPort)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if len(nodes) == 0 {
		return nil, configErrorf(KeyClusterNodes, "no cluster nodes in %q", raw)
	}
	return nodes, nil
}

func parseNode(raw string, defaultPort int) (Node, error) {
	if !strings.HasPrefix(raw, "[") && strings.Count(raw, ":") != 1 {
		return Node{Host: raw, Port: defaultPort}, nil
	}
	host, portRaw, err := net.SplitHostPort(raw)
	if err != nil {
		return Node{}, configErrorf(KeyClusterNodes, "invalid node %q: %v", raw, err)
	}
	if host == "" {
		return Node{}, configErrorf(KeyClusterNodes, "node %q has no host", raw)
	}
	port, err := parsePort(KeyClusterNodes, portRaw)
	if err != nil {
		return Node{}, err
	}
	return Node{Host: host, Port: port}, nil
}
