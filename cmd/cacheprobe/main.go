// Command cacheprobe verifies that a Redis or Valkey deployment works with
// every supported client and topology combination.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goforj/cacheprobe/config"
	"github.com/goforj/cacheprobe/harness"
	"github.com/goforj/cacheprobe/metrics"
	"github.com/goforj/cacheprobe/probe"
	"github.com/goforj/cacheprobe/report"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitInvalid = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

type flags struct {
	configPath  string
	envFile     string
	format      string
	watch       time.Duration
	metricsAddr string
	metricsFile string
	revalidate  bool
	concurrent  bool
	calls       int
}

func parseFlags(args []string, stderr io.Writer) (flags, map[string]bool, error) {
	var f flags
	fs := flag.NewFlagSet("cacheprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded under the process environment")
	fs.StringVar(&f.format, "format", "", "report format: text or json")
	fs.DurationVar(&f.watch, "watch", 0, "rerun every interval until interrupted")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics on this address in watch mode")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write metrics in Prometheus text format after each run")
	fs.BoolVar(&f.revalidate, "revalidate", false, "also verify stale-while-revalidate after the fresh window")
	fs.BoolVar(&f.concurrent, "concurrent", false, "issue flexible reads concurrently")
	fs.IntVar(&f.calls, "calls", 0, "flexible reads per phase")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	if fs.NArg() > 0 {
		return f, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// apply lays explicitly set flags over cfg.
func (f flags) apply(cfg *config.Config, set map[string]bool) {
	if set["format"] {
		cfg.Format = f.format
	}
	if set["watch"] {
		cfg.Watch.Interval = f.watch
	}
	if set["metrics-addr"] {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if set["metrics-file"] {
		cfg.Metrics.File = f.metricsFile
	}
	if set["revalidate"] {
		cfg.Probe.Revalidate = f.revalidate
	}
	if set["concurrent"] {
		cfg.Probe.Concurrent = f.concurrent
	}
	if set["calls"] {
		cfg.Probe.Calls = f.calls
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup environ) int {
	f, set, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, "cacheprobe:", err)
		return exitInvalid
	}

	env, err := withDotenv(f.envFile, set["env-file"], lookup)
	if err != nil {
		fmt.Fprintln(stderr, "cacheprobe:", err)
		return exitInvalid
	}
	cfg, err := config.LoadWithEnv(f.configPath, env)
	if err != nil {
		fmt.Fprintln(stderr, "cacheprobe:", err)
		return exitInvalid
	}
	f.apply(cfg, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "cacheprobe:", err)
		return exitInvalid
	}

	logger := cfg.Logging.NewLogger(stderr)
	m := metrics.New()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		stdout:  stdout,
		base:    connectionOptions(cfg.Connection, env),
		runner: harness.New(
			harness.WithLogger(logger),
			harness.WithMetrics(m),
			harness.WithProbeConfig(probeConfig(cfg.Probe)),
		),
		patterns: patternsOf(cfg.Patterns),
	}

	if cfg.Watch.Interval > 0 {
		return a.watch(ctx)
	}
	if cfg.Metrics.Addr != "" {
		logger.Debug("metrics address ignored outside watch mode", slog.String("address", cfg.Metrics.Addr))
	}
	return a.once(ctx)
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	runner   *harness.Runner
	stdout   io.Writer
	base     map[string]string
	patterns []harness.Pattern
}

// once runs every pattern, renders the report and returns the exit code.
func (a *app) once(ctx context.Context) int {
	rep := a.runner.Run(ctx, a.base, a.patterns)

	render := report.Render
	if a.cfg.Format == config.FormatJSON {
		render = report.RenderJSON
	}
	if err := render(a.stdout, rep); err != nil {
		a.logger.Error("render report", slog.Any("error", err))
	}
	if a.cfg.Metrics.File != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.File); err != nil {
			a.logger.Error("write metrics file", slog.String("path", a.cfg.Metrics.File), slog.Any("error", err))
		}
	}

	if !report.TallyOf(rep.Results).AllSucceeded() {
		return exitFailed
	}
	return exitOK
}

func probeConfig(c config.ProbeConfig) probe.Config {
	return probe.Config{
		Value:          c.Value,
		TTL:            c.TTL,
		Fresh:          c.Fresh,
		Stale:          c.Stale,
		Calls:          c.Calls,
		Concurrent:     c.Concurrent,
		Revalidate:     c.Revalidate,
		CommandTimeout: c.CommandTimeout,
	}
}

func patternsOf(configured []config.PatternConfig) []harness.Pattern {
	if len(configured) == 0 {
		return harness.DefaultPatterns()
	}
	patterns := make([]harness.Pattern, 0, len(configured))
	for _, p := range configured {
		patterns = append(patterns, harness.Pattern{Name: p.Name, Overrides: p.Options})
	}
	return patterns
}
