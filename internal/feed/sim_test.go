package feed

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/engine"
	"github.com/quantfeed/tradesim/internal/fees"
)

func TestSimFeedDrivesOrchestrator(t *testing.T) {
	sched := fees.NewScheduler([]domain.FeeScheduleEntry{
		{Venue: "OKX", Tier: 1, TakerRate: 0.0010},
	})
	orch := engine.New(engine.Config{
		OrderQuantity:    5,
		OrderSide:        domain.SideBuy,
		Venue:            "OKX",
		FeeTier:          1,
		DepthLevels:      20,
		VolatilityWindow: 100,
		PeriodsPerYear:   525600,
	}, sched, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	orchDone := make(chan struct{})
	go func() {
		_ = orch.Run(ctx)
		close(orchDone)
	}()

	sim := NewSimFeed([]string{"BTC-USDT"}, 50000, time.Millisecond, 42, orch, slog.Default())
	simDone := make(chan struct{})
	go func() {
		_ = sim.Run(ctx)
		close(simDone)
	}()

	require.Eventually(t, func() bool {
		st := orch.Stats()
		return st.PublishedCycles >= 50 && st.TradePrints >= 50
	}, 10*time.Second, 10*time.Millisecond)

	// The random walk drifts the mid across many ladder widths over 50
	// ticks; replacement deltas keep every one of them clean.
	st := orch.Stats()
	assert.Equal(t, int64(0), st.CrossedDeltas)
	assert.Equal(t, 1, st.Symbols)

	cancel()
	<-simDone
	<-orchDone
}
