package analytics

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/quantfeed/tradesim/internal/domain"
)

// SlippageConfig configures the learned slippage estimator.
type SlippageConfig struct {
	WindowSize   int     // rolling training window capacity
	RefitEvery   int     // samples accumulated between batch refits
	Quantile     float64 // worst-case quantile, e.g. 0.95
	DepthBandPct float64 // band around mid for the liquidity shortfall, e.g. 0.10
}

// Estimate is the output of a slippage query. Expected and WorstCase are nil
// until the first fit has completed; only the liquidity shortfall and the
// depth walker's baseline are meaningful before that.
type Estimate struct {
	Expected           *float64
	WorstCase          *float64
	LiquidityShortfall float64
}

// modelPair bundles the mean and quantile models fitted from the same window
// so readers can never observe a mean model from one fit paired with a
// quantile model from another. gen orders publications: a refit of an older
// window must not replace one fitted from a newer window.
type modelPair struct {
	mean     *linearModel
	quantile *linearModel
	gen      uint64
}

// SlippageEstimator maintains a rolling window of training samples and two
// regression models refit in batch every RefitEvery samples. Observe and
// Estimate are called only from the owning symbol lane; the fitted models are
// swapped in through an atomic pointer so a refit running on the background
// worker never exposes a half-updated pair.
type SlippageEstimator struct {
	cfg    SlippageConfig
	window *RollingWindow[domain.TrainingSample]

	samplesSinceFit int
	fitSeq          uint64
	models          atomic.Pointer[modelPair]
	fitMu           sync.Mutex

	logger *slog.Logger
}

// NewSlippageEstimator creates an estimator with the given configuration.
func NewSlippageEstimator(cfg SlippageConfig, logger *slog.Logger) *SlippageEstimator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 1000
	}
	if cfg.RefitEvery <= 0 {
		cfg.RefitEvery = 100
	}
	if cfg.Quantile <= 0 || cfg.Quantile >= 1 {
		cfg.Quantile = 0.95
	}
	if cfg.DepthBandPct <= 0 {
		cfg.DepthBandPct = 0.10
	}
	return &SlippageEstimator{
		cfg:    cfg,
		window: NewRollingWindow[domain.TrainingSample](cfg.WindowSize),
		logger: logger.With(slog.String("component", "slippage_estimator")),
	}
}

// Features builds the fixed-order feature vector for a hypothetical quantity
// against a snapshot.
func Features(snap domain.BookSnapshot, quantity float64) domain.FeatureVector {
	var sizeRatio float64
	if total := snap.TotalVisibleVolume(); total > 0 && quantity > 0 {
		sizeRatio = math.Log(quantity / total)
	}
	return domain.FeatureVector{
		quantity,
		snap.Spread(),
		snap.Imbalance(),
		snap.CumulativeDepth(domain.SideBuy, 0.01),
		snap.CumulativeDepth(domain.SideSell, 0.01),
		sizeRatio,
	}
}

// Observe records a realized fill: the actual slippage of executedPrice
// against the snapshot's weighted mid is appended to the training window, and
// once RefitEvery new samples have accumulated both models are refit on the
// full current window.
func (e *SlippageEstimator) Observe(snap domain.BookSnapshot, executedPrice, quantity float64) {
	wmid := snap.WeightedMid()
	if wmid <= 0 || executedPrice <= 0 || quantity <= 0 {
		return
	}

	e.window.Append(domain.TrainingSample{
		Features: Features(snap, quantity),
		Slippage: (executedPrice - wmid) / wmid,
	})
	e.samplesSinceFit++

	if e.samplesSinceFit >= e.cfg.RefitEvery {
		e.samplesSinceFit = 0
		e.fitSeq++
		samples := e.window.Values()
		go e.refit(samples, e.fitSeq)
	}
}

// refit fits both models on a copy of the window and publishes them as one
// atomic swap. Mutex acquisition is not FIFO, so a slow fit of an older
// window can reach the store after a newer one; the generation check keeps
// the newest window's models in place.
func (e *SlippageEstimator) refit(samples []domain.TrainingSample, gen uint64) {
	e.fitMu.Lock()
	defer e.fitMu.Unlock()

	if cur := e.models.Load(); cur != nil && cur.gen >= gen {
		e.logger.Debug("stale slippage refit discarded", slog.Uint64("generation", gen))
		return
	}

	mean, ok := fitLeastSquares(samples)
	if !ok {
		e.logger.Warn("slippage refit skipped",
			slog.Int("samples", len(samples)),
		)
		return
	}
	pair := &modelPair{
		mean:     mean,
		quantile: fitQuantile(samples, mean, e.cfg.Quantile),
		gen:      gen,
	}
	e.models.Store(pair)
	e.logger.Debug("slippage models refit",
		slog.Int("samples", len(samples)),
		slog.Float64("quantile", e.cfg.Quantile),
	)
}

// Trained reports whether at least one fit cycle has completed.
func (e *SlippageEstimator) Trained() bool { return e.models.Load() != nil }

// SampleCount returns the number of samples currently in the window.
func (e *SlippageEstimator) SampleCount() int { return e.window.Len() }

// Estimate predicts expected and worst-case slippage for a hypothetical
// quantity and computes the liquidity shortfall against the configured depth
// band. Before the first completed fit the predictions are absent, never a
// fabricated zero.
func (e *SlippageEstimator) Estimate(snap domain.BookSnapshot, quantity float64) Estimate {
	est := Estimate{
		LiquidityShortfall: e.liquidityShortfall(snap, quantity),
	}

	pair := e.models.Load()
	if pair == nil {
		return est
	}
	f := Features(snap, quantity)
	expected := pair.mean.predict(f)
	worst := pair.quantile.predict(f)
	est.Expected = &expected
	est.WorstCase = &worst
	return est
}

// liquidityShortfall is the fraction of quantity not covered by visible depth
// within the configured band of mid, across both sides.
func (e *SlippageEstimator) liquidityShortfall(snap domain.BookSnapshot, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}
	depth := snap.CumulativeDepth(domain.SideBuy, e.cfg.DepthBandPct) +
		snap.CumulativeDepth(domain.SideSell, e.cfg.DepthBandPct)
	short := quantity - depth
	if short <= 0 {
		return 0
	}
	return short / quantity
}
