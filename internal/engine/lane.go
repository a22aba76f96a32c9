package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantfeed/tradesim/internal/analytics"
	"github.com/quantfeed/tradesim/internal/book"
	"github.com/quantfeed/tradesim/internal/domain"
)

type laneState int

const (
	laneIdle laneState = iota
	laneReady
)

// laneEvent carries exactly one of a book delta or a trade print.
type laneEvent struct {
	delta *domain.BookDelta
	print *domain.TradePrint
}

// pendingFill tracks the hypothetical order currently awaiting realized
// fills. It pins the book snapshot from the cycle that requested the
// quantity so realized slippage is computed against the state at fill time.
type pendingFill struct {
	snap      domain.BookSnapshot
	quantity  float64
	remaining float64
	notional  float64
}

// lane is the single-consumer processing lane for one symbol. The book, the
// volatility window, and the estimator window are owned exclusively by the
// lane goroutine.
type lane struct {
	symbol string
	orch   *Orchestrator
	events chan laneEvent
	logger *slog.Logger

	state    laneState
	book     *book.Store
	vol      *analytics.VolatilityTracker
	slippage *analytics.SlippageEstimator
	impact   *analytics.MarketImpactModel
	pending  *pendingFill
}

func newLane(symbol string, o *Orchestrator) *lane {
	logger := o.logger.With(slog.String("symbol", symbol))
	return &lane{
		symbol:   symbol,
		orch:     o,
		events:   make(chan laneEvent, o.cfg.LaneBuffer),
		logger:   logger,
		book:     book.NewStore(symbol, o.cfg.DepthLevels),
		vol:      analytics.NewVolatilityTracker(o.cfg.VolatilityWindow, o.cfg.PeriodsPerYear),
		slippage: analytics.NewSlippageEstimator(o.cfg.Slippage, logger),
		impact:   analytics.NewMarketImpactModel(0, o.cfg.RiskAversion),
	}
}

func (l *lane) submit(ctx context.Context, ev laneEvent) error {
	select {
	case l.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run processes events strictly in arrival order. When ctx is cancelled the
// feed has already stopped; the lane drains what is still queued, then exits.
func (l *lane) run(ctx context.Context) {
	for {
		select {
		case ev := <-l.events:
			l.handle(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-l.events:
					l.handle(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (l *lane) handle(ctx context.Context, ev laneEvent) {
	switch {
	case ev.delta != nil:
		l.handleBookUpdate(ctx, *ev.delta)
	case ev.print != nil:
		l.handleTradePrint(*ev.print)
	}
}

// handleBookUpdate applies the delta and, when accepted, runs one full
// metrics cycle against a single snapshot. A crossed delta is rejected in
// full, counted, and logged; the prior book state is retained. A snapshot
// delta replaces the book outright and drops the lane back to idle until
// the replacement proves two-sided.
func (l *lane) handleBookUpdate(ctx context.Context, delta domain.BookDelta) {
	if delta.Snapshot {
		l.book.Reset()
		l.state = laneIdle
	}
	if err := l.book.Apply(delta); err != nil {
		if errors.Is(err, domain.ErrCrossedBook) {
			l.orch.crossedDeltas.Add(1)
			l.logger.Warn("crossed delta rejected",
				slog.Int("bid_entries", len(delta.Bids)),
				slog.Int("ask_entries", len(delta.Asks)),
			)
			return
		}
		l.logger.Error("book apply failed", slog.String("error", err.Error()))
		return
	}

	snap := l.book.Snapshot(time.Now().UTC())
	if l.state == laneIdle {
		if !snap.TwoSided() {
			return
		}
		l.state = laneReady
		l.logger.Info("first valid snapshot, lane ready")
	}
	l.cycle(ctx, snap)
}

// handleTradePrint advances the volatility tracker, pushes the refreshed
// volatility into the impact model, and credits the print against the
// pending hypothetical fill.
func (l *lane) handleTradePrint(print domain.TradePrint) {
	l.vol.Update(print.Price)
	l.impact.SetVolatility(l.vol.Current().ShortTerm)

	pf := l.pending
	if pf == nil || print.Size <= 0 {
		return
	}
	take := print.Size
	if take > pf.remaining {
		take = pf.remaining
	}
	pf.notional += take * print.Price
	pf.remaining -= take
	if pf.remaining > 1e-9 {
		return
	}
	// The requested quantity is closed; record the realized slippage
	// against the snapshot from request time.
	l.slippage.Observe(pf.snap, pf.notional/pf.quantity, pf.quantity)
	l.pending = nil
}

// cycle runs every derived computation against the same snapshot and
// publishes one immutable MetricsSnapshot. A failing computation leaves only
// its own field absent; the rest of the snapshot still publishes.
func (l *lane) cycle(ctx context.Context, snap domain.BookSnapshot) {
	qty := l.orch.cfg.OrderQuantity

	walk := book.Walk(snap, l.orch.cfg.OrderSide, qty)
	est := l.slippage.Estimate(snap, qty)

	m := domain.MetricsSnapshot{
		ID:                    uuid.NewString(),
		Symbol:                l.symbol,
		Timestamp:             snap.Timestamp,
		BaselineSlippage:      walk.BaselineSlippage(),
		FilledQuantity:        walk.Filled,
		InsufficientLiquidity: walk.InsufficientLiquidity,
		LiquidityShortfall:    est.LiquidityShortfall,
		ExpectedSlippage:      est.Expected,
		WorstCaseSlippage:     est.WorstCase,
		Volatility:            l.vol.Current(),
		TopBids:               snap.Bids,
		TopAsks:               snap.Asks,
	}

	if imp, err := l.impact.CalculateImpact(snap, qty); err != nil {
		l.logger.Debug("impact unavailable", slog.String("error", err.Error()))
	} else {
		m.MarketImpactTotal = imp.Total
		m.EstimatedExecutionPrice = imp.EstimatedExecutionPrice
	}

	if notional := l.feeNotional(snap, walk, qty); notional > 0 {
		fee, err := l.orch.fees.Fee(l.orch.cfg.Venue, l.orch.cfg.FeeTier, notional, false)
		if err != nil {
			l.logger.Warn("fee estimate unavailable", slog.String("error", err.Error()))
		} else {
			m.FeeEstimate = &fee
		}
	}

	if l.pending == nil {
		l.pending = &pendingFill{snap: snap, quantity: qty, remaining: qty}
	}

	if l.orch.subscriber != nil {
		l.orch.subscriber.PublishMetrics(ctx, m)
	}
	l.orch.publishedCycles.Add(1)
}

// feeNotional values the hypothetical trade for the fee estimate: mid price
// when available, otherwise the depth walker's realized notional.
func (l *lane) feeNotional(snap domain.BookSnapshot, walk book.WalkResult, qty float64) float64 {
	if mid := snap.Mid(); mid > 0 {
		return mid * qty
	}
	return walk.AvgPrice * walk.Filled
}
