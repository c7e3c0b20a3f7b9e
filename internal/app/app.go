// Package app assembles the collector, backtester, exporter and metrics from
// configuration. The CLI commands and the HTTP server share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/collector/cache"
	"github.com/newthinker/trailsim/internal/collector/csvfeed"
	"github.com/newthinker/trailsim/internal/collector/eastmoney"
	"github.com/newthinker/trailsim/internal/collector/yahoo"
	"github.com/newthinker/trailsim/internal/config"
	"github.com/newthinker/trailsim/internal/export"
	"github.com/newthinker/trailsim/internal/metrics"
	"github.com/newthinker/trailsim/internal/notifier"
	"github.com/newthinker/trailsim/internal/notifier/webhook"
	"github.com/newthinker/trailsim/internal/storage/archive"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	collectors *collector.Registry
	collector  collector.Collector
	cache      *cache.Collector
	backtester *backtest.Backtester
	exporter   *export.Exporter
	formats    []export.Format
	notifiers  *notifier.Registry
}

// New validates cfg and builds the application around the configured provider
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		collectors: collector.NewRegistry(),
		notifiers:  notifier.NewRegistry(),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	a.collectors.Register(yahoo.New(cfg.CollectorSettings(), logger))
	a.collectors.Register(eastmoney.New(cfg.CollectorSettings(), logger))
	if cfg.Collector.CSVDir != "" {
		feed, err := csvfeed.New(cfg.Collector.CSVDir)
		if err != nil {
			return nil, fmt.Errorf("creating csv collector: %w", err)
		}
		a.collectors.Register(feed)
	}

	c, err := a.collectors.MustGet(cfg.Collector.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Collector.CachePath != "" {
		a.cache, err = cache.New(c, cfg.Collector.CachePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening bar cache: %w", err)
		}
		c = a.cache
	}

	// A nil *metrics.Registry must not reach the interfaces below.
	if a.metrics != nil {
		a.collector = collector.Instrument(c, a.metrics)
		a.backtester = backtest.New(a.collector, logger, a.metrics)
	} else {
		a.collector = c
		a.backtester = backtest.New(a.collector, logger, nil)
	}

	a.formats, err = export.ParseFormats(cfg.Export.Formats)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := archive.New(cfg.ArchiveSettings())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating artifact storage: %w", err)
	}
	a.exporter = export.NewExporter(store, logger)

	if hook := cfg.Notify.Webhook; hook.URL != "" {
		w, err := webhook.New(hook.URL, hook.Headers)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.notifiers.Register(w)
	}

	logger.Debug("application assembled",
		zap.String("provider", a.collector.Name()),
		zap.Bool("cache", a.cache != nil),
		zap.Bool("metrics", a.metrics != nil),
		zap.String("storage", cfg.Export.Type),
		zap.Int("notifiers", a.notifiers.Len()),
	)
	return a, nil
}

func (a *App) Config() *config.Config           { return a.cfg }
func (a *App) Collector() collector.Collector   { return a.collector }
func (a *App) Backtester() *backtest.Backtester { return a.backtester }
func (a *App) Exporter() *export.Exporter       { return a.exporter }

// Metrics returns the registry, or nil when metrics are disabled
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Notifiers returns the registry of completion notifiers, possibly empty
func (a *App) Notifiers() *notifier.Registry { return a.notifiers }

// Formats are the configured default export formats
func (a *App) Formats() []export.Format { return a.formats }

// Providers lists the registered collector names
func (a *App) Providers() []string { return a.collectors.Names() }

// Simulate runs req, exports the result in formats (or in the configured formats when
// none are given) and notifies the registered endpoints of the outcome
func (a *App) Simulate(ctx context.Context, req backtest.Request, formats ...export.Format) (*backtest.Result, []export.Artifact, error) {
	if len(formats) == 0 {
		formats = a.formats
	}

	res, err := a.backtester.Run(ctx, req)
	var artifacts []export.Artifact
	if err == nil {
		artifacts, err = a.exporter.Export(ctx, res, formats)
	}

	if err != nil {
		a.notify(ctx, notifier.Failed("", req.Symbol, err, time.Now()))
		return res, artifacts, err
	}
	a.notify(ctx, notifier.Completed("", res))
	return res, artifacts, nil
}

func (a *App) notify(ctx context.Context, e notifier.Event) {
	for name, err := range a.notifiers.NotifyAll(ctx, e) {
		a.logger.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
	}
}

// Close releases the bar cache
func (a *App) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}
