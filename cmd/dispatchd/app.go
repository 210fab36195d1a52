package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/goclaw/dispatch/config"
	"github.com/goclaw/dispatch/pkg/api"
	"github.com/goclaw/dispatch/pkg/api/handlers"
	"github.com/goclaw/dispatch/pkg/dispatch"
	"github.com/goclaw/dispatch/pkg/logger"
	"github.com/goclaw/dispatch/pkg/metrics"
	"github.com/goclaw/dispatch/pkg/telemetry/tracing"
	"github.com/goclaw/dispatch/pkg/version"
)

const registryReportInterval = 10 * time.Second

// app owns everything dispatchd runs.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	hub     *dispatch.Hub
	metrics *metrics.Manager
	limiter *rate.Limiter
	health  *handlers.HealthHandler
	server  *api.HTTPServer
	demo    *demo

	shutdownTracing tracing.ShutdownFunc

	mu  sync.Mutex
	hot config.HotReloadableConfig
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:    cfg.Tracing.Enabled,
		Exporter:   cfg.Tracing.Exporter,
		Endpoint:   cfg.Tracing.Endpoint,
		Insecure:   cfg.Tracing.Insecure,
		Headers:    cfg.Tracing.Headers,
		Timeout:    cfg.Tracing.Timeout,
		Sampler:    cfg.Tracing.Sampler,
		SampleRate: cfg.Tracing.SampleRate,
	}, tracing.Resource{
		ServiceName:    cfg.App.Name,
		ServiceVersion: version.Get().Version,
		InstanceID:     uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Path = cfg.Metrics.Path
	m := metrics.NewManager(metricsCfg)
	if m.Enabled() {
		dispatch.SetMetricsRecorder(m)
	}

	limiter := rate.NewLimiter(failureLogLimit(cfg.Dispatch.FailureLogRate), cfg.Dispatch.FailureLogBurst)
	hub := dispatch.NewHub(
		dispatch.WithLogger(log),
		dispatch.WithDefaultWeak(cfg.Dispatch.DefaultWeak),
		dispatch.WithMaxConcurrency(cfg.Dispatch.MaxConcurrency),
		dispatch.WithFailureHandler(dispatch.LogFailures(log, limiter)),
	)

	a := &app{
		cfg:             cfg,
		log:             log,
		hub:             hub,
		metrics:         m,
		limiter:         limiter,
		health:          handlers.NewHealthHandler(hub),
		shutdownTracing: shutdownTracing,
		hot:             config.ExtractHotReloadable(cfg),
	}

	if cfg.Demo.Enabled {
		a.demo = newDemo(hub, log)
		if err := a.demo.wire(); err != nil {
			return nil, fmt.Errorf("wire demo: %w", err)
		}
	}

	if cfg.Admin.Enabled {
		h := &api.Handlers{
			Signals: handlers.NewSignalHandler(hub, log),
			Health:  a.health,
		}
		if m.Enabled() {
			h.Metrics = m
			h.MetricsHandler = m.Handler()
		}
		a.server = api.NewHTTPServer(cfg, log, h)
	}

	return a, nil
}

// run blocks until ctx is done or a component fails, then shuts down.
func (a *app) run(ctx context.Context, configPath string) error {
	var watcher *config.Watcher
	if configPath != "" {
		w, err := config.NewWatcher(configPath, config.WithWatcherLogger(a.log))
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		w.OnChange(a.applyConfig)
		watcher = w
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(a.server.Start)
		g.Go(func() error {
			<-ctx.Done()
			a.health.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Admin.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	if a.demo != nil {
		g.Go(func() error {
			a.demo.run(ctx, a.cfg.Demo.Interval)
			return nil
		})
	}

	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return watcher.Stop()
		})
	}

	g.Go(func() error {
		a.reportRegistry(ctx)
		return nil
	})

	a.health.SetReady(true)
	a.log.Info("dispatchd is running", "admin", a.cfg.Admin.Enabled, "demo", a.cfg.Demo.Enabled)

	err := g.Wait()
	a.close()
	return err
}

func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(shutdownCtx); err != nil {
		a.log.Warn("tracing shutdown failed", "error", err)
	}
	if a.metrics.Enabled() {
		dispatch.SetMetricsRecorder(nil)
	}
}

// applyConfig applies the hot-reloadable part of a reloaded configuration.
func (a *app) applyConfig(cfg *config.Config) {
	next := config.ExtractHotReloadable(cfg)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hot.Changed(next) {
		return
	}

	if next.LogLevel != a.hot.LogLevel {
		a.log.SetLevel(logger.ParseLevel(next.LogLevel))
	}
	a.limiter.SetLimit(failureLogLimit(next.FailureLogRate))
	a.limiter.SetBurst(next.FailureLogBurst)

	a.log.Info("configuration reloaded",
		"log_level", next.LogLevel,
		"failure_log_rate", next.FailureLogRate,
		"failure_log_burst", next.FailureLogBurst,
	)
	a.hot = next
}

// reportRegistry publishes live receiver counts until ctx is done.
func (a *app) reportRegistry(ctx context.Context) {
	ticker := time.NewTicker(registryReportInterval)
	defer ticker.Stop()
	for {
		for _, st := range a.hub.Stats() {
			a.metrics.SetRegisteredReceivers(st.Name, st.Registrations-st.Stale)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// failureLogLimit maps a configured rate to a limiter rate; 0 disables
// limiting.
func failureLogLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 || math.IsInf(perSecond, 1) {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}
