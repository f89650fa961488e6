package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// watch reruns the patterns every interval until ctx is done. Runs never
// overlap. The exit code is that of the last run not cut short by ctx.
func (a *app) watch(ctx context.Context) int {
	var last atomic.Int32
	last.Store(exitOK)

	srv, err := a.serveMetrics(ctx)
	if err != nil {
		a.logger.Error("metrics server", slog.String("address", a.cfg.Metrics.Addr), slog.Any("error", err))
		return exitInvalid
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(a.cfg.Watch.Interval).Do(func() {
		code := a.once(ctx)
		if ctx.Err() == nil {
			last.Store(int32(code))
		}
	}); err != nil {
		a.logger.Error("schedule run", slog.Any("error", err))
		return exitInvalid
	}
	a.logger.Info("watch started", slog.Duration("interval", a.cfg.Watch.Interval))
	scheduler.StartAsync()

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	scheduler.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancel()
	}
	return int(last.Load())
}

// serveMetrics starts the /metrics listener when an address is configured.
func (a *app) serveMetrics(ctx context.Context) (*http.Server, error) {
	if a.cfg.Metrics.Addr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		a.logger.Info("metrics server listening", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server exited", slog.Any("error", err))
		}
	}()
	return srv, nil
}
