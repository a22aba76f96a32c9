package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfeed/tradesim/internal/domain"
)

// shortTermReturns is how many of the most recent returns feed the short-term
// volatility measure.
const shortTermReturns = 10

// VolatilityTracker maintains rolling log-return statistics from trade
// prints. Owned exclusively by one symbol's processing lane.
type VolatilityTracker struct {
	lastPrice      float64
	returns        *RollingWindow[float64]
	periodsPerYear float64
}

// NewVolatilityTracker creates a tracker with a log-return window of the
// given capacity. periodsPerYear annualizes the standard deviations and must
// match the trade-print cadence; the legacy implementations disagreed on it,
// so it is configuration rather than a constant.
func NewVolatilityTracker(window int, periodsPerYear float64) *VolatilityTracker {
	return &VolatilityTracker{
		returns:        NewRollingWindow[float64](window),
		periodsPerYear: periodsPerYear,
	}
}

// Update records a trade price. When a positive previous price exists, the
// log return ln(price/prev) is appended; degenerate updates (non-positive
// price or no prior) advance the last price without appending.
func (t *VolatilityTracker) Update(price float64) {
	if t.lastPrice > 0 && price > 0 {
		t.returns.Append(math.Log(price / t.lastPrice))
	}
	t.lastPrice = price
}

// LastPrice returns the most recently observed trade price.
func (t *VolatilityTracker) LastPrice() float64 { return t.lastPrice }

// Current returns the three volatility measures. With fewer than two recorded
// returns every measure is 0.
func (t *VolatilityTracker) Current() domain.Volatility {
	if t.returns.Len() < 2 {
		return domain.Volatility{}
	}

	last, _ := t.returns.Last()
	annualize := math.Sqrt(t.periodsPerYear)
	return domain.Volatility{
		Instantaneous: math.Abs(last),
		ShortTerm:     stat.PopStdDev(t.returns.Tail(shortTermReturns), nil) * annualize,
		LongTerm:      stat.PopStdDev(t.returns.Values(), nil) * annualize,
	}
}
