// Package fees provides the static maker/taker fee schedule lookup.
package fees

import (
	"sort"

	"github.com/quantfeed/tradesim/internal/domain"
)

type tierKey struct {
	venue string
	tier  int
}

// Scheduler is an immutable fee table keyed by (venue, tier). It is built
// once at startup and may be shared freely across symbol lanes.
type Scheduler struct {
	table map[tierKey]domain.FeeScheduleEntry
}

// NewScheduler builds a Scheduler from the loaded schedule entries. Later
// entries for the same (venue, tier) replace earlier ones.
func NewScheduler(entries []domain.FeeScheduleEntry) *Scheduler {
	table := make(map[tierKey]domain.FeeScheduleEntry, len(entries))
	for _, e := range entries {
		table[tierKey{venue: e.Venue, tier: e.Tier}] = e
	}
	return &Scheduler{table: table}
}

// Fee returns notional * rate for the given venue tier, using the maker or
// taker rate per isMaker. A missing (venue, tier) yields an
// UnknownFeeTierError.
func (s *Scheduler) Fee(venue string, tier int, notional float64, isMaker bool) (float64, error) {
	entry, ok := s.table[tierKey{venue: venue, tier: tier}]
	if !ok {
		return 0, &domain.UnknownFeeTierError{Venue: venue, Tier: tier}
	}
	rate := entry.TakerRate
	if isMaker {
		rate = entry.MakerRate
	}
	return notional * rate, nil
}

// AvailableTiers lists the tiers configured for a venue in ascending order.
func (s *Scheduler) AvailableTiers(venue string) []int {
	var tiers []int
	for k := range s.table {
		if k.venue == venue {
			tiers = append(tiers, k.tier)
		}
	}
	sort.Ints(tiers)
	return tiers
}
