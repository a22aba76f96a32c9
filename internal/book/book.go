// Package book maintains one symbol's two-sided price-level orderbook and
// provides the depth-walking fill simulation used for baseline slippage.
package book

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantfeed/tradesim/internal/domain"
)

// Store holds the live L2 book for a single symbol. It is owned exclusively
// by that symbol's processing lane; mutation happens only through Apply and
// reads only through Snapshot, so no locking is needed.
type Store struct {
	symbol      string
	bids        map[float64]float64
	asks        map[float64]float64
	depthLevels int
}

// NewStore creates an empty book for symbol. Snapshots expose at most
// depthLevels levels per side.
func NewStore(symbol string, depthLevels int) *Store {
	if depthLevels <= 0 {
		depthLevels = 20
	}
	return &Store{
		symbol:      symbol,
		bids:        make(map[float64]float64),
		asks:        make(map[float64]float64),
		depthLevels: depthLevels,
	}
}

// Symbol returns the symbol this book tracks.
func (s *Store) Symbol() string { return s.symbol }

// Reset drops every level on both sides. Called when a feed snapshot
// replaces the whole book, so stale levels from before a reconnect cannot
// cross against the fresh state.
func (s *Store) Reset() {
	clear(s.bids)
	clear(s.asks)
}

// undoEntry records the prior state of one touched level so a rejected delta
// can be rolled back without copying the whole book.
type undoEntry struct {
	side    domain.Side
	price   float64
	size    float64
	existed bool
}

// Apply mutates the book with all entries of delta: size 0 removes the level
// (no-op when absent), a non-zero size replaces or creates it. If the fully
// applied delta would cross the book (bestBid >= bestAsk), every entry is
// rolled back and domain.ErrCrossedBook is returned; prior state is retained
// exactly.
func (s *Store) Apply(delta domain.BookDelta) error {
	undo := make([]undoEntry, 0, len(delta.Bids)+len(delta.Asks))

	for _, e := range delta.Bids {
		prior, ok := s.bids[e.Price]
		undo = append(undo, undoEntry{side: domain.SideBuy, price: e.Price, size: prior, existed: ok})
		s.setLevel(s.bids, e)
	}
	for _, e := range delta.Asks {
		prior, ok := s.asks[e.Price]
		undo = append(undo, undoEntry{side: domain.SideSell, price: e.Price, size: prior, existed: ok})
		s.setLevel(s.asks, e)
	}

	if s.crossed() {
		for i := len(undo) - 1; i >= 0; i-- {
			u := undo[i]
			levels := s.bids
			if u.side == domain.SideSell {
				levels = s.asks
			}
			if u.existed {
				levels[u.price] = u.size
			} else {
				delete(levels, u.price)
			}
		}
		return fmt.Errorf("book %s: %w", s.symbol, domain.ErrCrossedBook)
	}
	return nil
}

func (s *Store) setLevel(levels map[float64]float64, e domain.DeltaEntry) {
	if e.Size == 0 {
		delete(levels, e.Price)
		return
	}
	levels[e.Price] = e.Size
}

// crossed reports bestBid >= bestAsk. A one-sided or empty book is never
// crossed.
func (s *Store) crossed() bool {
	if len(s.bids) == 0 || len(s.asks) == 0 {
		return false
	}
	bestBid := math.Inf(-1)
	for p := range s.bids {
		if p > bestBid {
			bestBid = p
		}
	}
	bestAsk := math.Inf(1)
	for p := range s.asks {
		if p < bestAsk {
			bestAsk = p
		}
	}
	return bestBid >= bestAsk
}

// Snapshot returns an immutable top-N view of the book. The returned value
// shares no state with the store: later Apply calls never affect a snapshot
// already taken, so all computations of one orchestration cycle can read the
// same consistent view.
func (s *Store) Snapshot(now time.Time) domain.BookSnapshot {
	snap := domain.BookSnapshot{
		Symbol:    s.symbol,
		Bids:      topLevels(s.bids, s.depthLevels, true),
		Asks:      topLevels(s.asks, s.depthLevels, false),
		Timestamp: now,
	}
	for _, l := range snap.Bids {
		snap.TotalBidDepth += l.Size
	}
	for _, l := range snap.Asks {
		snap.TotalAskDepth += l.Size
	}
	return snap
}

// topLevels extracts up to n levels from a side, bids sorted descending and
// asks ascending.
func topLevels(levels map[float64]float64, n int, descending bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for p, sz := range levels {
		out = append(out, domain.PriceLevel{Price: p, Size: sz})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
