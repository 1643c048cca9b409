package main

import (
	"fmt"

	"github.com/setevik/faultwatch/internal/config"
	"github.com/setevik/faultwatch/internal/logging"
	"github.com/setevik/faultwatch/internal/metrics"
	"github.com/setevik/faultwatch/internal/pipeline"
	"github.com/setevik/faultwatch/internal/reporter"
	"github.com/setevik/faultwatch/internal/stats"
	"github.com/setevik/faultwatch/internal/store"
	"github.com/setevik/faultwatch/internal/throttle"
)

// app holds what every subcommand needs: configuration, the opened store, and
// the stats engine on top of it.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	store   *store.Store
	stats   *stats.Engine
}

// openApp loads the config, sets up logging, and opens the stats store.
// quiet raises the log level to error for commands whose output is the point.
func openApp(quiet bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if quiet {
		level = "error"
	}
	logging.Setup(level, cfg.Log.Format)

	m := metrics.New()
	st, err := store.Open(cfg.Stats.Backend, cfg.StatsPath(), store.Options{
		Retention:   cfg.Stats.Retention.Duration,
		GCInterval:  cfg.Stats.GCInterval.Duration,
		KeepPending: cfg.Notify.Summary,
		Metrics:     m,
	})
	if err != nil {
		return nil, fmt.Errorf("opening stats store: %w", err)
	}

	return &app{
		cfg:     cfg,
		metrics: m,
		store:   st,
		stats:   stats.New(st, cfg.Stats.Retention.Duration, m),
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}

// sender builds the configured notification transport.
func (a *app) sender() (reporter.Sender, error) {
	switch a.cfg.Notify.Transport {
	case config.TransportNtfy:
		return reporter.NewNtfy(a.cfg), nil
	case config.TransportSMTP:
		return reporter.NewSMTP(a.cfg), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", a.cfg.Notify.Transport)
	}
}

// newPipeline wires the throttle engine and pipeline around a sender.
func (a *app) newPipeline(sender reporter.Sender) *pipeline.Pipeline {
	th := throttle.New(a.stats, reporter.NewTextRenderer(a.cfg), sender, throttle.OptionsFromConfig(a.cfg), a.metrics)
	return pipeline.New(a.stats, th)
}
