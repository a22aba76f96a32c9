package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCrossedBook is returned when applying a delta would leave
	// bestBid >= bestAsk. The delta is rejected in full.
	ErrCrossedBook = errors.New("crossed book delta")

	// ErrModelNotTrained is returned by the slippage estimator before its
	// first completed fit cycle.
	ErrModelNotTrained = errors.New("slippage model not trained")

	// ErrOneSidedBook is returned by computations that need both a bid and
	// an ask to be present.
	ErrOneSidedBook = errors.New("book is one-sided")

	// ErrNotFound is returned by caches and stores when no entry exists.
	ErrNotFound = errors.New("not found")
)

// UnknownFeeTierError reports a (venue, tier) lookup that is absent from the
// fee schedule. It fails only the fee field of the affected cycle.
type UnknownFeeTierError struct {
	Venue string
	Tier  int
}

func (e *UnknownFeeTierError) Error() string {
	return fmt.Sprintf("unknown fee tier %d for venue %q", e.Tier, e.Venue)
}
