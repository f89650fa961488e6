package main

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"

	"github.com/joho/godotenv"

	"github.com/goforj/cacheprobe/connspec"
)

// environ looks up one variable, like os.LookupEnv.
type environ func(string) (string, bool)

// aliases maps the legacy Valkey variable names onto connection keys. The
// connection key wins when both are set.
var aliases = map[string]string{
	"VALKEY_ENDPOINT": connspec.KeyHost,
	"VALKEY_PORT":     connspec.KeyPort,
}

// withDotenv layers the variables of a dotenv file under lookup. A missing
// file is ignored unless required is set.
func withDotenv(path string, required bool, lookup environ) (environ, error) {
	if path == "" {
		return lookup, nil
	}
	content, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return lookup, nil
		}
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := content[key]
		return v, ok
	}, nil
}

// connectionOptions collects the connection keys from the environment over
// the options of the config file.
func connectionOptions(fromFile map[string]string, lookup environ) map[string]string {
	out := make(map[string]string, len(fromFile))
	maps.Copy(out, fromFile)
	for alias, key := range aliases {
		if v, ok := lookup(alias); ok {
			out[key] = v
		}
	}
	for _, key := range connspec.Keys() {
		if v, ok := lookup(key); ok {
			out[key] = v
		}
	}
	return out
}
