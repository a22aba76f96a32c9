// Package engine sequences the analytics pipeline: it routes feed events to
// per-symbol processing lanes, runs one full metrics cycle per accepted book
// update, and publishes the resulting immutable MetricsSnapshot.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/quantfeed/tradesim/internal/analytics"
	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/fees"
)

// Config holds the per-run analytics parameters shared by all symbol lanes.
type Config struct {
	// OrderQuantity is the hypothetical trade size every cycle estimates.
	OrderQuantity float64
	// OrderSide is the taker side of the hypothetical trade.
	OrderSide domain.Side
	// Venue and FeeTier select the fee schedule entry for fee estimates.
	Venue   string
	FeeTier int
	// DepthLevels bounds the snapshot view per side.
	DepthLevels int
	// VolatilityWindow is the log-return window capacity per symbol.
	VolatilityWindow int
	// PeriodsPerYear annualizes volatility; must match print cadence.
	PeriodsPerYear float64
	// RiskAversion is forwarded to the impact model (reserved).
	RiskAversion float64
	// Slippage configures the learned estimator per symbol.
	Slippage analytics.SlippageConfig
	// LaneBuffer is the per-symbol event queue depth.
	LaneBuffer int
}

// Subscriber receives every published MetricsSnapshot. The orchestrator holds
// at most one subscriber handle, checked once per cycle; fan-out to multiple
// consumers belongs to the subscriber implementation.
type Subscriber interface {
	PublishMetrics(ctx context.Context, snap domain.MetricsSnapshot)
}

// Stats is a point-in-time view of the orchestrator's event counters.
type Stats struct {
	BookUpdates     int64 `json:"book_updates"`
	TradePrints     int64 `json:"trade_prints"`
	CrossedDeltas   int64 `json:"crossed_deltas"`
	PublishedCycles int64 `json:"published_cycles"`
	Symbols         int   `json:"symbols"`
}

// Orchestrator owns one processing lane per symbol. Events for a symbol are
// processed strictly in arrival order on that symbol's lane; different
// symbols proceed concurrently. Each lane exclusively owns its book,
// volatility window, and estimator, so no locking guards the hot path.
type Orchestrator struct {
	cfg        Config
	fees       *fees.Scheduler
	subscriber Subscriber
	logger     *slog.Logger

	mu     sync.Mutex
	lanes  map[string]*lane
	runCtx context.Context
	wg     sync.WaitGroup

	bookUpdates     atomic.Int64
	tradePrints     atomic.Int64
	crossedDeltas   atomic.Int64
	publishedCycles atomic.Int64
}

// ErrNotRunning is returned by Submit calls before Run has started.
var ErrNotRunning = errors.New("engine: orchestrator not running")

// New creates an Orchestrator. subscriber may be nil, in which case cycles
// still run (book and model state advance) but snapshots are not delivered.
func New(cfg Config, feeSched *fees.Scheduler, subscriber Subscriber, logger *slog.Logger) *Orchestrator {
	if cfg.LaneBuffer <= 0 {
		cfg.LaneBuffer = 256
	}
	if cfg.OrderSide != domain.SideSell {
		cfg.OrderSide = domain.SideBuy
	}
	if cfg.VolatilityWindow <= 0 {
		cfg.VolatilityWindow = 100
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 365 * 24 * 60
	}
	return &Orchestrator{
		cfg:        cfg,
		fees:       feeSched,
		subscriber: subscriber,
		logger:     logger.With(slog.String("component", "orchestrator")),
		lanes:      make(map[string]*lane),
	}
}

// Run marks the orchestrator as accepting events and blocks until ctx is
// cancelled, then waits for every lane to drain its queued events. No cycle
// is interrupted mid-computation.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	o.runCtx = ctx
	o.mu.Unlock()

	o.logger.Info("orchestrator started",
		slog.Float64("order_quantity", o.cfg.OrderQuantity),
		slog.String("order_side", string(o.cfg.OrderSide)),
		slog.String("venue", o.cfg.Venue),
		slog.Int("fee_tier", o.cfg.FeeTier),
	)

	<-ctx.Done()
	o.wg.Wait()

	o.logger.Info("orchestrator drained",
		slog.Int64("book_updates", o.bookUpdates.Load()),
		slog.Int64("trade_prints", o.tradePrints.Load()),
		slog.Int64("crossed_deltas", o.crossedDeltas.Load()),
	)
	return ctx.Err()
}

// SubmitBookUpdate queues a validated book delta on its symbol's lane,
// creating the lane on first sight of the symbol.
func (o *Orchestrator) SubmitBookUpdate(ctx context.Context, delta domain.BookDelta) error {
	l, err := o.laneFor(delta.Symbol)
	if err != nil {
		return err
	}
	o.bookUpdates.Add(1)
	return l.submit(ctx, laneEvent{delta: &delta})
}

// SubmitTradePrint queues a validated trade print on its symbol's lane.
func (o *Orchestrator) SubmitTradePrint(ctx context.Context, print domain.TradePrint) error {
	l, err := o.laneFor(print.Symbol)
	if err != nil {
		return err
	}
	o.tradePrints.Add(1)
	return l.submit(ctx, laneEvent{print: &print})
}

// Stats returns current event counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	symbols := len(o.lanes)
	o.mu.Unlock()
	return Stats{
		BookUpdates:     o.bookUpdates.Load(),
		TradePrints:     o.tradePrints.Load(),
		CrossedDeltas:   o.crossedDeltas.Load(),
		PublishedCycles: o.publishedCycles.Load(),
		Symbols:         symbols,
	}
}

// laneFor returns the symbol's lane, starting one when the symbol is new.
func (o *Orchestrator) laneFor(symbol string) (*lane, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.runCtx == nil {
		return nil, ErrNotRunning
	}
	if l, ok := o.lanes[symbol]; ok {
		return l, nil
	}

	l := newLane(symbol, o)
	o.lanes[symbol] = l
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		l.run(o.runCtx)
	}()
	o.logger.Info("lane started", slog.String("symbol", symbol))
	return l, nil
}
