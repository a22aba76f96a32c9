package book

import "github.com/quantfeed/tradesim/internal/domain"

// WalkResult reports the outcome of simulating a fill against a snapshot.
// When the side is exhausted before the requested quantity fills,
// InsufficientLiquidity is true and Shortfall carries the unfilled remainder;
// callers must surface that explicitly rather than treating it as zero
// slippage.
type WalkResult struct {
	Side                  domain.Side
	Requested             float64
	Filled                float64
	AvgPrice              float64
	BestPrice             float64
	Shortfall             float64
	InsufficientLiquidity bool
}

// Walk simulates filling quantity against the given side of a snapshot,
// consuming levels from best to worst. A BUY consumes asks, a SELL consumes
// bids. Pure function of its inputs.
func Walk(snap domain.BookSnapshot, side domain.Side, quantity float64) WalkResult {
	res := WalkResult{Side: side, Requested: quantity}

	levels := snap.Asks
	if side == domain.SideSell {
		levels = snap.Bids
	}
	if len(levels) == 0 {
		res.Shortfall = quantity
		res.InsufficientLiquidity = quantity > 0
		return res
	}
	res.BestPrice = levels[0].Price

	remaining := quantity
	var notional float64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		notional += take * lvl.Price
		remaining -= take
	}

	res.Filled = quantity - remaining
	if res.Filled > 0 {
		res.AvgPrice = notional / res.Filled
	}
	if remaining > 0 {
		res.Shortfall = remaining
		res.InsufficientLiquidity = true
	}
	return res
}

// BaselineSlippage is the relative difference between the realized average
// price and the best available price, signed so that positive is adverse for
// the taker: paying up on a BUY, hitting down on a SELL.
func (r WalkResult) BaselineSlippage() float64 {
	if r.BestPrice <= 0 || r.Filled <= 0 {
		return 0
	}
	if r.Side == domain.SideSell {
		return (r.BestPrice - r.AvgPrice) / r.BestPrice
	}
	return (r.AvgPrice - r.BestPrice) / r.BestPrice
}
