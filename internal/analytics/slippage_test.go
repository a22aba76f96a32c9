package analytics

import (
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/tradesim/internal/domain"
)

func testSnapshot(bidSize, askSize float64) domain.BookSnapshot {
	return domain.BookSnapshot{
		Symbol: "BTC-USDT",
		Bids: []domain.PriceLevel{
			{Price: 100.0, Size: bidSize},
			{Price: 99.5, Size: bidSize},
		},
		Asks: []domain.PriceLevel{
			{Price: 100.2, Size: askSize},
			{Price: 100.7, Size: askSize},
		},
		TotalBidDepth: 2 * bidSize,
		TotalAskDepth: 2 * askSize,
		Timestamp:     time.Now(),
	}
}

func TestFeaturesVector(t *testing.T) {
	snap := testSnapshot(10, 30)

	f := Features(snap, 5)
	assert.Equal(t, 5.0, f[0])
	assert.InDelta(t, 0.2, f[1], 1e-9)
	assert.InDelta(t, (20.0-60.0)/80.0, f[2], 1e-9)
	// All four levels sit within 1% of mid.
	assert.Equal(t, 20.0, f[3])
	assert.Equal(t, 60.0, f[4])
	assert.InDelta(t, math.Log(5.0/80.0), f[5], 1e-9)
}

func TestEstimateBeforeFirstFit(t *testing.T) {
	e := NewSlippageEstimator(SlippageConfig{}, slog.Default())

	est := e.Estimate(testSnapshot(10, 10), 5)
	assert.Nil(t, est.Expected)
	assert.Nil(t, est.WorstCase)
	assert.False(t, e.Trained())
}

func TestObserveTriggersRefit(t *testing.T) {
	e := NewSlippageEstimator(SlippageConfig{
		WindowSize: 200,
		RefitEvery: 50,
		Quantile:   0.95,
	}, slog.Default())

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		snap := testSnapshot(5+rng.Float64()*20, 5+rng.Float64()*20)
		qty := 1 + rng.Float64()*10
		// Executions land slightly above the weighted mid.
		exec := snap.WeightedMid() * (1 + 0.0001 + 0.0005*rng.Float64())
		e.Observe(snap, exec, qty)
	}

	require.Eventually(t, e.Trained, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 50, e.SampleCount())

	est := e.Estimate(testSnapshot(10, 10), 5)
	require.NotNil(t, est.Expected)
	require.NotNil(t, est.WorstCase)
	assert.GreaterOrEqual(t, *est.WorstCase, *est.Expected)
}

func TestObserveIgnoresDegenerateFills(t *testing.T) {
	e := NewSlippageEstimator(SlippageConfig{}, slog.Default())
	snap := testSnapshot(10, 10)

	e.Observe(snap, 0, 5)
	e.Observe(snap, 100, 0)
	e.Observe(domain.BookSnapshot{}, 100, 5) // no mid derivable

	assert.Equal(t, 0, e.SampleCount())
}

func TestLiquidityShortfall(t *testing.T) {
	e := NewSlippageEstimator(SlippageConfig{DepthBandPct: 0.10}, slog.Default())

	// 40 units of depth within the band against a request for 100.
	est := e.Estimate(testSnapshot(10, 10), 100)
	assert.InDelta(t, 0.6, est.LiquidityShortfall, 1e-9)

	// Fully covered request.
	est = e.Estimate(testSnapshot(10, 10), 30)
	assert.Equal(t, 0.0, est.LiquidityShortfall)
}

func TestSlippageConfigDefaults(t *testing.T) {
	e := NewSlippageEstimator(SlippageConfig{}, slog.Default())
	assert.Equal(t, 1000, e.cfg.WindowSize)
	assert.Equal(t, 100, e.cfg.RefitEvery)
	assert.Equal(t, 0.95, e.cfg.Quantile)
	assert.Equal(t, 0.10, e.cfg.DepthBandPct)
}

func TestStaleRefitDoesNotReplaceNewerModel(t *testing.T) {
	e := NewSlippageEstimator(SlippageConfig{}, slog.Default())
	var flat [domain.FeatureCount]float64
	newer := syntheticSamples(100, 0.5, flat, 0)
	older := syntheticSamples(100, -0.5, flat, 0)

	e.refit(newer, 2)
	// A slow fit of an earlier window finishing late must not win.
	e.refit(older, 1)

	pair := e.models.Load()
	require.NotNil(t, pair)
	assert.Equal(t, uint64(2), pair.gen)
	assert.InDelta(t, 0.5, pair.mean.intercept, 1e-6)

	// A genuinely newer window still replaces the models.
	e.refit(older, 3)
	assert.InDelta(t, -0.5, e.models.Load().mean.intercept, 1e-6)
}
