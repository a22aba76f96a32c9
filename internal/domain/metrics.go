package domain

import "time"

// FeatureCount is the fixed length of a FeatureVector.
const FeatureCount = 6

// FeatureVector is the fixed-order input to the slippage models:
// [quantity, spread, imbalance, bidDepthNearMid, askDepthNearMid,
// log(quantity / totalVisibleVolume)].
type FeatureVector [FeatureCount]float64

// TrainingSample pairs a feature vector with the realized slippage it
// produced. Samples are only constructed when a fill's slippage can be
// computed against the book snapshot at fill time.
type TrainingSample struct {
	Features FeatureVector
	Slippage float64
}

// Volatility bundles the three realized-volatility measures derived from the
// trade print stream. Short and long term are annualized.
type Volatility struct {
	Instantaneous float64 `json:"instantaneous"`
	ShortTerm     float64 `json:"short_term"`
	LongTerm      float64 `json:"long_term"`
}

// FeeScheduleEntry is one maker/taker rate pair for a venue fee tier. Loaded
// once at startup and immutable thereafter.
type FeeScheduleEntry struct {
	Venue     string
	Tier      int
	MakerRate float64
	TakerRate float64
}

// MarketImpact is the decomposed impact estimate for executing a quantity.
type MarketImpact struct {
	Temporary               float64 `json:"temporary"`
	Permanent               float64 `json:"permanent"`
	Total                   float64 `json:"total"`
	EstimatedExecutionPrice float64 `json:"estimated_execution_price"`
}

// MetricsSnapshot is the immutable bundle of derived metrics published for
// one symbol after one update cycle. A new cycle always produces a new
// snapshot object; published snapshots are never mutated.
//
// ExpectedSlippage and WorstCaseSlippage are nil until the slippage estimator
// has completed its first fit. FeeEstimate is nil when the configured fee
// tier is unknown for that cycle.
type MetricsSnapshot struct {
	ID                      string       `json:"id"`
	Symbol                  string       `json:"symbol"`
	Timestamp               time.Time    `json:"timestamp"`
	BaselineSlippage        float64      `json:"baseline_slippage"`
	FilledQuantity          float64      `json:"filled_quantity"`
	InsufficientLiquidity   bool         `json:"insufficient_liquidity"`
	LiquidityShortfall      float64      `json:"liquidity_shortfall"`
	ExpectedSlippage        *float64     `json:"expected_slippage,omitempty"`
	WorstCaseSlippage       *float64     `json:"worst_case_slippage,omitempty"`
	MarketImpactTotal       float64      `json:"market_impact_total"`
	EstimatedExecutionPrice float64      `json:"estimated_execution_price"`
	FeeEstimate             *float64     `json:"fee_estimate,omitempty"`
	Volatility              Volatility   `json:"volatility"`
	TopBids                 []PriceLevel `json:"top_bids"`
	TopAsks                 []PriceLevel `json:"top_asks"`
}
