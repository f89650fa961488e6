package connspec

// Option keys accepted by Build. They match the environment variable names
// the CLI collects.
const (
	KeyConnectionType = "CONNECTION_TYPE"
	KeyClient         = "REDIS_CLIENT"
	KeyURL            = "REDIS_URL"
	KeyHost           = "REDIS_HOST"
	KeyPort           = "REDIS_PORT"
	KeyScheme         = "REDIS_SCHEME"
	KeyUsername       = "REDIS_USERNAME"
	KeyPassword       = "REDIS_PASSWORD"
	KeyDatabase       = "REDIS_DB"
	KeyClusterNodes   = "REDIS_CLUSTER_NODES"
	KeyPrefix         = "REDIS_PREFIX"
	KeyConnectTimeout = "REDIS_CONNECT_TIMEOUT"
	KeyCommandTimeout = "REDIS_COMMAND_TIMEOUT"
	KeyTLSServerName  = "REDIS_TLS_SERVER_NAME"
	KeyTLSInsecure    = "REDIS_TLS_INSECURE"
)

// Keys lists every option key Build understands, in table order.
func Keys() []string {
	return []string{
		KeyConnectionType,
		KeyClient,
		KeyURL,
		KeyHost,
		KeyPort,
		KeyScheme,
		KeyUsername,
		KeyPassword,
		KeyDatabase,
		KeyClusterNodes,
		KeyPrefix,
		KeyConnectTimeout,
		KeyCommandTimeout,
		KeyTLSServerName,
		KeyTLSInsecure,
	}
}

// requiredIfPresent keys fail Build when set to an empty or blank value.
var requiredIfPresent = map[string]bool{
	KeyConnectionType: true,
	KeyClient:         true,
	KeyHost:           true,
	KeyPort:           true,
	KeyScheme:         true,
	KeyClusterNodes:   true,
	KeyConnectTimeout: true,
	KeyCommandTimeout: true,
}
