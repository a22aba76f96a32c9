package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/fees"
)

// captureSubscriber collects published snapshots and signals each arrival.
type captureSubscriber struct {
	mu    sync.Mutex
	snaps []domain.MetricsSnapshot
	ch    chan domain.MetricsSnapshot
}

func newCaptureSubscriber() *captureSubscriber {
	return &captureSubscriber{ch: make(chan domain.MetricsSnapshot, 64)}
}

func (c *captureSubscriber) PublishMetrics(ctx context.Context, snap domain.MetricsSnapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, snap)
	c.mu.Unlock()
	c.ch <- snap
}

func (c *captureSubscriber) wait(t *testing.T) domain.MetricsSnapshot {
	t.Helper()
	select {
	case snap := <-c.ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published snapshot")
		return domain.MetricsSnapshot{}
	}
}

func testConfig() Config {
	return Config{
		OrderQuantity:    15,
		OrderSide:        domain.SideBuy,
		Venue:            "OKX",
		FeeTier:          1,
		DepthLevels:      20,
		VolatilityWindow: 100,
		PeriodsPerYear:   525600,
	}
}

func testFees() *fees.Scheduler {
	return fees.NewScheduler([]domain.FeeScheduleEntry{
		{Venue: "OKX", Tier: 1, MakerRate: 0.0008, TakerRate: 0.0010},
	})
}

// startOrchestrator runs the orchestrator until test cleanup and blocks
// until it accepts submissions.
func startOrchestrator(t *testing.T, cfg Config, sub Subscriber) *Orchestrator {
	t.Helper()
	o := New(cfg, testFees(), sub, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.runCtx != nil
	}, time.Second, time.Millisecond)
	return o
}

func twoSidedDelta(symbol string) domain.BookDelta {
	return domain.BookDelta{
		Symbol: symbol,
		Bids: []domain.DeltaEntry{
			{Price: 100.0, Size: 10},
			{Price: 99.9, Size: 10},
		},
		Asks: []domain.DeltaEntry{
			{Price: 100.1, Size: 10},
			{Price: 100.2, Size: 10},
		},
	}
}

func TestSubmitBeforeRun(t *testing.T) {
	o := New(testConfig(), testFees(), nil, slog.Default())
	err := o.SubmitBookUpdate(context.Background(), twoSidedDelta("BTC-USDT"))
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestCyclePublishesSnapshot(t *testing.T) {
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, testConfig(), sub)

	require.NoError(t, o.SubmitBookUpdate(context.Background(), twoSidedDelta("BTC-USDT")))
	snap := sub.wait(t)

	assert.Equal(t, "BTC-USDT", snap.Symbol)
	assert.NotEmpty(t, snap.ID)
	// 10 @ 100.1 then 5 @ 100.2.
	assert.Equal(t, 15.0, snap.FilledQuantity)
	assert.False(t, snap.InsufficientLiquidity)
	assert.Greater(t, snap.BaselineSlippage, 0.0)
	// The learned estimates are absent before the first fit.
	assert.Nil(t, snap.ExpectedSlippage)
	assert.Nil(t, snap.WorstCaseSlippage)
	require.NotNil(t, snap.FeeEstimate)
	assert.InDelta(t, 100.05*15*0.0010, *snap.FeeEstimate, 1e-9)
	assert.Len(t, snap.TopBids, 2)
	assert.Len(t, snap.TopAsks, 2)
}

func TestOneSidedBookStaysIdle(t *testing.T) {
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, testConfig(), sub)
	ctx := context.Background()

	require.NoError(t, o.SubmitBookUpdate(ctx, domain.BookDelta{
		Symbol: "BTC-USDT",
		Bids:   []domain.DeltaEntry{{Price: 100, Size: 5}},
	}))
	// Completing the other side wakes the lane and publishes.
	require.NoError(t, o.SubmitBookUpdate(ctx, domain.BookDelta{
		Symbol: "BTC-USDT",
		Asks:   []domain.DeltaEntry{{Price: 100.1, Size: 5}},
	}))

	snap := sub.wait(t)
	require.Eventually(t, func() bool {
		return o.Stats().PublishedCycles == 1
	}, time.Second, time.Millisecond)
	assert.Len(t, snap.TopBids, 1)
}

func TestCrossedDeltaCountedNotPublished(t *testing.T) {
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, testConfig(), sub)
	ctx := context.Background()

	require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("BTC-USDT")))
	sub.wait(t)

	// A bid through the best ask must be rejected without a publish.
	require.NoError(t, o.SubmitBookUpdate(ctx, domain.BookDelta{
		Symbol: "BTC-USDT",
		Bids:   []domain.DeltaEntry{{Price: 100.5, Size: 1}},
	}))
	require.Eventually(t, func() bool {
		return o.Stats().CrossedDeltas == 1 && o.Stats().PublishedCycles == 1
	}, time.Second, time.Millisecond)

	// The book survived intact: the next clean delta still publishes.
	require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("BTC-USDT")))
	snap := sub.wait(t)
	assert.Equal(t, 100.0, snap.TopBids[0].Price)
}

func TestSnapshotDeltaReplacesBook(t *testing.T) {
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, testConfig(), sub)
	ctx := context.Background()

	require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("BTC-USDT")))
	sub.wait(t)

	// The ladder after a reconnect can sit entirely above the old one. Its
	// bids would cross the stale asks, so it must replace the book, not
	// patch it.
	require.NoError(t, o.SubmitBookUpdate(ctx, domain.BookDelta{
		Symbol:   "BTC-USDT",
		Snapshot: true,
		Bids: []domain.DeltaEntry{
			{Price: 110.0, Size: 10},
			{Price: 109.9, Size: 10},
		},
		Asks: []domain.DeltaEntry{
			{Price: 110.1, Size: 10},
			{Price: 110.2, Size: 10},
		},
	}))

	snap := sub.wait(t)
	assert.Equal(t, 110.0, snap.TopBids[0].Price)
	assert.Equal(t, 110.1, snap.TopAsks[0].Price)
	// Nothing from the pre-reconnect book survives.
	assert.Len(t, snap.TopBids, 2)
	assert.Len(t, snap.TopAsks, 2)
	assert.Equal(t, int64(0), o.Stats().CrossedDeltas)
}

func TestOneSidedSnapshotReturnsToIdle(t *testing.T) {
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, testConfig(), sub)
	ctx := context.Background()

	require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("BTC-USDT")))
	sub.wait(t)

	// A one-sided snapshot wipes the book, so the lane must stop
	// publishing until both sides come back.
	require.NoError(t, o.SubmitBookUpdate(ctx, domain.BookDelta{
		Symbol:   "BTC-USDT",
		Snapshot: true,
		Bids:     []domain.DeltaEntry{{Price: 100, Size: 5}},
	}))
	require.NoError(t, o.SubmitBookUpdate(ctx, domain.BookDelta{
		Symbol: "BTC-USDT",
		Asks:   []domain.DeltaEntry{{Price: 100.1, Size: 5}},
	}))

	snap := sub.wait(t)
	assert.Len(t, snap.TopBids, 1)
	assert.Len(t, snap.TopAsks, 1)
	require.Eventually(t, func() bool {
		return o.Stats().PublishedCycles == 2
	}, time.Second, time.Millisecond)
}

func TestNewAppliesConfigDefaults(t *testing.T) {
	o := New(Config{}, testFees(), nil, slog.Default())

	assert.Equal(t, 256, o.cfg.LaneBuffer)
	assert.Equal(t, domain.SideBuy, o.cfg.OrderSide)
	assert.Equal(t, 100, o.cfg.VolatilityWindow)
	assert.Equal(t, float64(365*24*60), o.cfg.PeriodsPerYear)
}

func TestTradePrintsFeedVolatility(t *testing.T) {
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, testConfig(), sub)
	ctx := context.Background()

	for _, px := range []float64{100.0, 100.4, 99.8, 100.2} {
		require.NoError(t, o.SubmitTradePrint(ctx, domain.TradePrint{
			Symbol: "BTC-USDT", Price: px, Size: 1, Side: domain.SideBuy,
		}))
	}
	require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("BTC-USDT")))

	snap := sub.wait(t)
	assert.Greater(t, snap.Volatility.ShortTerm, 0.0)
	assert.Greater(t, snap.Volatility.LongTerm, 0.0)
	assert.Greater(t, snap.MarketImpactTotal, 0.0)
	assert.Greater(t, snap.EstimatedExecutionPrice, 0.0)
}

func TestUnknownFeeTierLeavesOtherFields(t *testing.T) {
	cfg := testConfig()
	cfg.FeeTier = 99
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, cfg, sub)

	require.NoError(t, o.SubmitBookUpdate(context.Background(), twoSidedDelta("BTC-USDT")))
	snap := sub.wait(t)

	assert.Nil(t, snap.FeeEstimate)
	assert.Equal(t, 15.0, snap.FilledQuantity)
	assert.Greater(t, snap.BaselineSlippage, 0.0)
}

func TestSymbolsProcessIndependently(t *testing.T) {
	sub := newCaptureSubscriber()
	o := startOrchestrator(t, testConfig(), sub)
	ctx := context.Background()

	require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("BTC-USDT")))
	require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("ETH-USDT")))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[sub.wait(t).Symbol] = true
	}
	assert.True(t, seen["BTC-USDT"])
	assert.True(t, seen["ETH-USDT"])
	assert.Equal(t, 2, o.Stats().Symbols)
}

func TestRunDrainsQueuedEvents(t *testing.T) {
	sub := newCaptureSubscriber()
	o := New(testConfig(), testFees(), sub, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.runCtx != nil
	}, time.Second, time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, o.SubmitBookUpdate(ctx, twoSidedDelta("BTC-USDT")))
	}
	cancel()
	<-done

	// Everything queued before cancellation was still processed.
	assert.Equal(t, int64(10), o.Stats().PublishedCycles)
}
