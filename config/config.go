// Package config loads harness settings from YAML with CACHEPROBE_*
// environment overrides. Connection options are not part of it; they stay
// the flat key/value map consumed by connspec.Build.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// EnvConfigPath names the config file when Load receives an empty path.
const EnvConfigPath = "CACHEPROBE_CONFIG"

// Config is the full harness configuration.
type Config struct {
	Format     string            `yaml:"format"`
	Logging    LoggingConfig     `yaml:"logging"`
	Probe      ProbeConfig       `yaml:"probe"`
	Patterns   []PatternConfig   `yaml:"patterns"`
	Connection map[string]string `yaml:"connection"`
	Watch      WatchConfig       `yaml:"watch"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ProbeConfig tunes the probe sequence. Zero values take the probe defaults.
type ProbeConfig struct {
	Value          string        `yaml:"value"`
	TTL            time.Duration `yaml:"ttl"`
	Fresh          time.Duration `yaml:"fresh"`
	Stale          time.Duration `yaml:"stale"`
	Calls          int           `yaml:"calls"`
	Concurrent     bool          `yaml:"concurrent"`
	Revalidate     bool          `yaml:"revalidate"`
	CommandTimeout time.Duration `yaml:"commandTimeout"`
}

// PatternConfig is one named set of connection option overrides.
type PatternConfig struct {
	Name    string            `yaml:"name"`
	Options map[string]string `yaml:"options"`
}

// WatchConfig enables periodic runs when Interval is positive.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Format:  FormatText,
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (or $CACHEPROBE_CONFIG) over the defaults and applies
// environment overrides. An empty path with no env var yields the defaults.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	if path == "" {
		path, _ = lookup(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	var errs []error
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("format %q: want %s or %s", c.Format, FormatText, FormatJSON))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Probe.Calls < 0 {
		errs = append(errs, fmt.Errorf("probe.calls %d: must not be negative", c.Probe.Calls))
	}
	if c.Probe.Fresh > 0 && c.Probe.Stale > 0 && c.Probe.Fresh > c.Probe.Stale {
		errs = append(errs, fmt.Errorf("probe.fresh %s exceeds probe.stale %s", c.Probe.Fresh, c.Probe.Stale))
	}
	if c.Watch.Interval < 0 {
		errs = append(errs, fmt.Errorf("watch.interval %s: must not be negative", c.Watch.Interval))
	}
	for i, p := range c.Patterns {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("patterns[%d]: name is required", i))
		}
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level; empty means info.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	if strings.TrimSpace(l.Level) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, fmt.Errorf("logging.level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger builds a text or JSON slog.Logger writing to w.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []error
	duration := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := get("CACHEPROBE_FORMAT"); ok {
		cfg.Format = strings.ToLower(v)
	}
	if v, ok := get("CACHEPROBE_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := get("CACHEPROBE_LOG_FORMAT"); ok {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v, ok := get("CACHEPROBE_PROBE_VALUE"); ok {
		cfg.Probe.Value = v
	}
	if v, ok := get("CACHEPROBE_PROBE_CALLS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CACHEPROBE_PROBE_CALLS: %w", err))
		} else {
			cfg.Probe.Calls = n
		}
	}
	duration("CACHEPROBE_PROBE_TTL", &cfg.Probe.TTL)
	duration("CACHEPROBE_PROBE_FRESH", &cfg.Probe.Fresh)
	duration("CACHEPROBE_PROBE_STALE", &cfg.Probe.Stale)
	duration("CACHEPROBE_PROBE_COMMAND_TIMEOUT", &cfg.Probe.CommandTimeout)
	boolean("CACHEPROBE_PROBE_CONCURRENT", &cfg.Probe.Concurrent)
	boolean("CACHEPROBE_PROBE_REVALIDATE", &cfg.Probe.Revalidate)
	duration("CACHEPROBE_WATCH", &cfg.Watch.Interval)
	if v, ok := get("CACHEPROBE_METRICS_ADDR"); ok {
		cfg.Metrics.Addr = v
	}
	if v, ok := get("CACHEPROBE_METRICS_FILE"); ok {
		cfg.Metrics.File = v
	}
	return errors.Join(errs...)
}
