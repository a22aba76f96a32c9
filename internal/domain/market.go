// Package domain defines the shared market-data and analytics types used
// across the trade cost estimator, along with the sentinel errors and the
// cache/bus interfaces implemented by the infrastructure packages.
package domain

import "time"

// Side is the taker side of an order or trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PriceLevel is a single price+size entry in an orderbook. A level only
// exists while its size is positive.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// DeltaEntry is one incremental level update. A size of 0 removes the level;
// a non-zero size replaces it outright.
type DeltaEntry struct {
	Price float64
	Size  float64
}

// BookDelta is a batch of level updates for one symbol. All entries of one
// delta are applied atomically: if the resulting book would be crossed, the
// whole delta is rejected. Snapshot marks a full-book replacement: every
// prior level for the symbol is discarded before the entries are applied.
// Venues send these on connect and after reconnects.
type BookDelta struct {
	Symbol      string
	Bids        []DeltaEntry
	Asks        []DeltaEntry
	Snapshot    bool
	EventTime   time.Time
	ReceiptTime time.Time
}

// TradePrint is a single executed trade from the venue feed. Immutable once
// received.
type TradePrint struct {
	Symbol    string
	Price     float64
	Size      float64
	Side      Side
	Timestamp time.Time
}

// BookSnapshot is an immutable view of one symbol's book taken at a point in
// time. Bids are ordered descending by price, asks ascending. All read-only
// consumers of one orchestration cycle share the same snapshot.
type BookSnapshot struct {
	Symbol        string       `json:"symbol"`
	Bids          []PriceLevel `json:"bids"`
	Asks          []PriceLevel `json:"asks"`
	TotalBidDepth float64      `json:"total_bid_depth"`
	TotalAskDepth float64      `json:"total_ask_depth"`
	Timestamp     time.Time    `json:"timestamp"`
}

// BestBid returns the highest bid level, or false when the bid side is empty.
func (s BookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level, or false when the ask side is empty.
func (s BookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// TwoSided reports whether both sides of the book are populated. Derived
// reads (spread, mid, weighted mid) are only meaningful on a two-sided book.
func (s BookSnapshot) TwoSided() bool {
	return len(s.Bids) > 0 && len(s.Asks) > 0
}

// Spread returns bestAsk - bestBid, or 0 on a one-sided book.
func (s BookSnapshot) Spread() float64 {
	if !s.TwoSided() {
		return 0
	}
	return s.Asks[0].Price - s.Bids[0].Price
}

// Mid returns the midpoint price, or 0 on a one-sided book.
func (s BookSnapshot) Mid() float64 {
	if !s.TwoSided() {
		return 0
	}
	return (s.Bids[0].Price + s.Asks[0].Price) / 2
}

// WeightedMid returns the depth-weighted midpoint: each best price is weighted
// by the size resting on the opposite side. Falls back to Mid when the best
// level sizes sum to zero.
func (s BookSnapshot) WeightedMid() float64 {
	if !s.TwoSided() {
		return 0
	}
	bid, ask := s.Bids[0], s.Asks[0]
	total := bid.Size + ask.Size
	if total <= 0 {
		return s.Mid()
	}
	return (bid.Price*ask.Size + ask.Price*bid.Size) / total
}

// Imbalance returns (bidDepth - askDepth) / (bidDepth + askDepth) over the
// snapshot's depth window, in [-1, 1]. Returns 0 when the book is empty.
func (s BookSnapshot) Imbalance() float64 {
	total := s.TotalBidDepth + s.TotalAskDepth
	if total <= 0 {
		return 0
	}
	return (s.TotalBidDepth - s.TotalAskDepth) / total
}

// CumulativeDepth sums the size of levels on the given side whose price lies
// within pctFromMid (a fraction, e.g. 0.10 for 10%) of the midpoint.
func (s BookSnapshot) CumulativeDepth(side Side, pctFromMid float64) float64 {
	mid := s.Mid()
	if mid <= 0 {
		return 0
	}
	band := mid * pctFromMid

	var levels []PriceLevel
	if side == SideBuy {
		levels = s.Bids
	} else {
		levels = s.Asks
	}

	var depth float64
	for _, lvl := range levels {
		d := lvl.Price - mid
		if d < 0 {
			d = -d
		}
		if d > band {
			break
		}
		depth += lvl.Size
	}
	return depth
}

// TotalVisibleVolume returns the combined size across both sides of the
// snapshot.
func (s BookSnapshot) TotalVisibleVolume() float64 {
	return s.TotalBidDepth + s.TotalAskDepth
}
