// Package harness runs the connection patterns one after another and
// records each outcome.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/goforj/cacheprobe/cache"
	"github.com/goforj/cacheprobe/cachecore"
	"github.com/goforj/cacheprobe/connect"
	"github.com/goforj/cacheprobe/connspec"
	"github.com/goforj/cacheprobe/metrics"
	"github.com/goforj/cacheprobe/probe"
	"github.com/goforj/cacheprobe/report"
)

// Pattern is one named set of connection overrides applied over the base
// options.
type Pattern struct {
	Name      string
	Overrides map[string]string
}

// DefaultPatterns are the four client and topology combinations.
func DefaultPatterns() []Pattern {
	combos := []struct {
		client   cachecore.Driver
		topology connspec.Topology
		label    string
	}{
		{cachecore.DriverGoRedis, connspec.TopologySingle, "single node"},
		{cachecore.DriverGoRedis, connspec.TopologyCluster, "cluster mode"},
		{cachecore.DriverRueidis, connspec.TopologySingle, "single node"},
		{cachecore.DriverRueidis, connspec.TopologyCluster, "cluster mode"},
	}
	patterns := make([]Pattern, 0, len(combos))
	for i, c := range combos {
		patterns = append(patterns, Pattern{
			Name: fmt.Sprintf("Pattern %d: %s + %s (%s)", i+1, c.client, c.topology, c.label),
			Overrides: map[string]string{
				connspec.KeyClient:         string(c.client),
				connspec.KeyConnectionType: string(c.topology),
			},
		})
	}
	return patterns
}

// Session is the part of a live handle the runner drives.
type Session interface {
	Cache() *cache.Cache
	Describe(ctx context.Context) (connect.Diagnostics, error)
	Close() error
}

// Connector opens a Session. Connect is the production Connector.
type Connector func(ctx context.Context, spec connspec.Spec, opts connect.Options) (Session, error)

// Connect adapts connect.Connect to Connector.
func Connect(ctx context.Context, spec connspec.Spec, opts connect.Options) (Session, error) {
	h, err := connect.Connect(ctx, spec, opts)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Runner executes patterns strictly in sequence.
type Runner struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	probe     probe.Config
	clock     func() time.Time
	connector Connector
	runID     func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics feeds pattern and cache activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithProbeConfig tunes the probe sequence.
func WithProbeConfig(cfg probe.Config) Option {
	return func(r *Runner) { r.probe = cfg }
}

// WithClock drives both the report timestamps and flexible-read freshness.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.clock = now
		}
	}
}

// WithConnector replaces how sessions are opened.
func WithConnector(c Connector) Option {
	return func(r *Runner) {
		if c != nil {
			r.connector = c
		}
	}
}

// WithRunID replaces the run ID generator.
func WithRunID(next func() string) Option {
	return func(r *Runner) {
		if next != nil {
			r.runID = next
		}
	}
}

// New returns a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:     time.Now,
		connector: Connect,
		runID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes patterns in order over base and returns the full report.
// A failing or panicking pattern never stops the ones after it.
func (r *Runner) Run(ctx context.Context, base map[string]string, patterns []Pattern) report.Report {
	runID := r.runID()
	rep := report.Report{RunID: runID, StartedAt: r.clock()}
	logger := r.logger.With(slog.String("run_id", runID))
	logger.Info("run started", slog.Int("patterns", len(patterns)))

	rec := report.NewRecorder()
	for i, p := range patterns {
		namespace := fmt.Sprintf("cacheprobe:%s:pattern%d", runID, i+1)
		endpoint := r.runPattern(ctx, logger.With(slog.String("pattern", p.Name)), rec, namespace, base, p)
		if rep.Endpoint == "" {
			rep.Endpoint = endpoint
		}
	}
	rep.Results = rec.Results()

	tally := report.TallyOf(rep.Results)
	if r.metrics != nil {
		r.metrics.ObserveRun(tally, r.clock())
	}
	logger.Info("run finished", slog.Int("succeeded", tally.Succeeded), slog.Int("total", tally.Total))
	return rep
}

// runPattern executes build, connect, probe and close for one pattern and
// records exactly one result. It returns the pattern's endpoint when the
// options were valid.
func (r *Runner) runPattern(ctx context.Context, logger *slog.Logger, rec *report.Recorder, namespace string, base map[string]string, p Pattern) (endpoint string) {
	start := time.Now()
	var (
		outcomes []probe.Outcome
		err      error
		opts     []report.RecordOption
	)
	defer func() {
		if v := recover(); v != nil {
			err = &probe.ProbeError{Kind: probe.KindUnexpectedException, Message: fmt.Sprintf("panic: %v", v)}
		}
		res := rec.Record(p.Name, outcomes, err, opts...)
		elapsed := time.Since(start)
		if r.metrics != nil {
			r.metrics.ObservePattern(res, elapsed)
		}
		if res.Succeeded() {
			logger.Info("pattern succeeded", slog.Duration("elapsed", elapsed))
		} else {
			logger.Warn("pattern failed",
				slog.String("kind", string(res.Failure.Kind)),
				slog.String("operation", string(res.Failure.Operation)),
				slog.String("message", res.Failure.Message),
			)
		}
	}()

	spec, err := connspec.Build(merge(base, p.Overrides))
	if err != nil {
		return ""
	}
	endpoint = spec.Endpoint()
	logger.Debug("spec built", slog.Any("spec", spec))

	connectOpts := connect.Options{Clock: r.clock}
	if r.metrics != nil {
		connectOpts.Observer = r.metrics.CacheObserver()
	}
	session, err := r.connector(ctx, spec, connectOpts)
	if err != nil {
		return endpoint
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("close session", slog.Any("error", cerr))
		}
	}()

	describeCtx, cancel := context.WithTimeout(ctx, spec.CommandTimeout())
	defer cancel()
	diag, derr := session.Describe(describeCtx)
	if derr != nil {
		logger.Warn("describe session", slog.Any("error", derr))
	} else {
		opts = append(opts, report.WithDiagnostics(diag))
		logger.Debug("session described", slog.Any("masters", diag.Masters))
	}

	probeCfg := r.probe
	if probeCfg.CommandTimeout <= 0 {
		probeCfg.CommandTimeout = spec.CommandTimeout()
	}
	outcomes, err = probe.NewRunner(probeCfg).Run(ctx, session.Cache(), namespace)
	return endpoint
}

// merge layers overrides over base without mutating either.
func merge(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	maps.Copy(out, base)
	maps.Copy(out, overrides)
	return out
}
