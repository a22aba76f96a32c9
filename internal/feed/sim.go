package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/engine"
)

// simLevels is how many levels per side the synthetic book carries.
const simLevels = 10

// SimFeed generates a synthetic random-walk market so the full pipeline can
// run without venue connectivity. Each tick emits a snapshot delta replacing
// the book with a fresh ladder around the drifting mid price, plus a trade
// print near the mid. Replacement rather than incremental updates: the mid
// can move further than the ladder is wide, and leftover levels from the
// previous tick would cross the new ones.
type SimFeed struct {
	symbols  []string
	interval time.Duration
	orch     *engine.Orchestrator
	logger   *slog.Logger
	rng      *rand.Rand

	mids map[string]float64
}

// NewSimFeed creates a synthetic feed for the given symbols. startPrice seeds
// every symbol's mid; interval controls the tick cadence.
func NewSimFeed(symbols []string, startPrice float64, interval time.Duration, seed int64, orch *engine.Orchestrator, logger *slog.Logger) *SimFeed {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if startPrice <= 0 {
		startPrice = 50000
	}
	mids := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		mids[sym] = startPrice
	}
	return &SimFeed{
		symbols:  symbols,
		interval: interval,
		orch:     orch,
		logger:   logger.With(slog.String("component", "sim_feed")),
		rng:      rand.New(rand.NewSource(seed)),
		mids:     mids,
	}
}

// Run emits synthetic events until ctx is cancelled.
func (s *SimFeed) Run(ctx context.Context) error {
	s.logger.Info("sim feed started",
		slog.Int("symbols", len(s.symbols)),
		slog.Duration("interval", s.interval),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, sym := range s.symbols {
				s.tick(ctx, sym)
			}
		}
	}
}

// tick advances one symbol's mid by a small random step and emits a snapshot
// delta replacing the book, followed by a trade print.
func (s *SimFeed) tick(ctx context.Context, symbol string) {
	mid := s.mids[symbol] * (1 + (s.rng.Float64()-0.5)*0.002)
	s.mids[symbol] = mid

	tickSize := mid * 0.0001
	now := time.Now().UTC()

	delta := domain.BookDelta{Symbol: symbol, Snapshot: true, EventTime: now, ReceiptTime: now}
	for i := 1; i <= simLevels; i++ {
		size := 0.5 + s.rng.Float64()*5
		delta.Bids = append(delta.Bids, domain.DeltaEntry{
			Price: mid - tickSize*float64(i),
			Size:  size,
		})
		delta.Asks = append(delta.Asks, domain.DeltaEntry{
			Price: mid + tickSize*float64(i),
			Size:  size,
		})
	}
	if err := s.orch.SubmitBookUpdate(ctx, delta); err != nil {
		return
	}

	side := domain.SideBuy
	price := mid + tickSize
	if s.rng.Float64() < 0.5 {
		side = domain.SideSell
		price = mid - tickSize
	}
	print := domain.TradePrint{
		Symbol:    symbol,
		Price:     price,
		Size:      0.1 + s.rng.Float64()*2,
		Side:      side,
		Timestamp: now,
	}
	_ = s.orch.SubmitTradePrint(ctx, print)
}
