package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/quantfeed/tradesim/internal/analytics"
	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/engine"
	"github.com/quantfeed/tradesim/internal/feed"
	"github.com/quantfeed/tradesim/internal/server"
)

// pipeline bundles the components shared by both operating modes.
type pipeline struct {
	orch   *engine.Orchestrator
	parser *feed.Parser
	hub    *server.Hub
	server *server.Server
}

// buildPipeline constructs the engine, feed parser, dashboard hub, and the
// optional HTTP server, all sharing the wired dependencies.
func (a *App) buildPipeline(deps *Dependencies) *pipeline {
	logger := slog.Default()
	ac := a.cfg.Analytics

	hub := server.NewHub(logger)
	subscriber := &metricsFanout{
		hub:    hub,
		cache:  deps.MetricsCache,
		bus:    deps.SignalBus,
		logger: logger.With(slog.String("component", "metrics_fanout")),
	}

	orch := engine.New(engine.Config{
		OrderQuantity:    ac.OrderQuantity,
		OrderSide:        domain.Side(ac.OrderSide),
		Venue:            ac.Venue,
		FeeTier:          ac.FeeTier,
		DepthLevels:      ac.DepthLevels,
		VolatilityWindow: ac.VolatilityWindow,
		PeriodsPerYear:   ac.PeriodsPerYear,
		RiskAversion:     ac.RiskAversion,
		Slippage: analytics.SlippageConfig{
			WindowSize:   ac.SlippageWindow,
			RefitEvery:   ac.RefitEvery,
			Quantile:     ac.WorstCaseQuantile,
			DepthBandPct: ac.DepthBandPct,
		},
		LaneBuffer: ac.LaneBuffer,
	}, deps.FeeScheduler, subscriber, logger)

	monitor := feed.NewDropMonitor(
		a.cfg.Feed.MalformedRateThreshold,
		a.cfg.Feed.MalformedMinEvents,
		func(ctx context.Context, dropped, total int64, rate float64) {
			msg := fmt.Sprintf("dropped %d of %d feed entries (%.2f%%)", dropped, total, rate*100)
			if err := deps.Notifier.Notify(ctx, "feed_degraded", "Feed quality degraded", msg); err != nil {
				logger.Warn("feed degradation notify failed", slog.String("error", err.Error()))
			}
		},
		logger,
	)
	parser := feed.NewParser(monitor, logger)

	p := &pipeline{orch: orch, parser: parser, hub: hub}
	if a.cfg.Server.Enabled {
		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		p.server = server.New(addr, hub, deps.MetricsCache, orch, logger)
	}
	return p
}

// run starts the shared pipeline goroutines plus the mode-specific feed and
// blocks until the first failure or context cancellation.
func (a *App) run(ctx context.Context, p *pipeline, feedRun func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.orch.Run(gctx) })
	g.Go(func() error { return p.hub.Run(gctx) })
	if p.server != nil {
		g.Go(func() error { return p.server.Run(gctx) })
	}
	g.Go(func() error { return feedRun(gctx) })

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		// Clean shutdown: cancellation propagated through the group.
		a.logger.Info("application stopped")
		return nil
	}
	return err
}

// LiveMode connects to the venue websocket feed and processes real market
// data until ctx is cancelled.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	p := a.buildPipeline(deps)
	feeder := feed.NewFeeder(a.cfg.Feed.WsURL, a.cfg.Feed.Symbols, p.parser, p.orch, slog.Default())
	return a.run(ctx, p, feeder.Run)
}

// SimMode drives the pipeline with a synthetic random-walk feed. Useful for
// development and for exercising the full estimation path without venue
// connectivity.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	p := a.buildPipeline(deps)
	sim := feed.NewSimFeed(
		a.cfg.Feed.Symbols,
		a.cfg.Sim.StartPrice,
		a.cfg.Sim.Interval.Duration,
		a.cfg.Sim.Seed,
		p.orch,
		slog.Default(),
	)
	return a.run(ctx, p, sim.Run)
}
