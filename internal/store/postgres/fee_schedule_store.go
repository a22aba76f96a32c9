package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfeed/tradesim/internal/domain"
)

// FeeScheduleStore reads venue fee schedules from the fee_schedules table.
// The schedule is reference data maintained out of band; the estimator only
// ever reads it, once, at startup.
type FeeScheduleStore struct {
	pool *pgxpool.Pool
}

// NewFeeScheduleStore creates a FeeScheduleStore on the given pool.
func NewFeeScheduleStore(pool *pgxpool.Pool) *FeeScheduleStore {
	return &FeeScheduleStore{pool: pool}
}

// LoadAll returns every fee schedule entry ordered by venue and tier.
func (s *FeeScheduleStore) LoadAll(ctx context.Context) ([]domain.FeeScheduleEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT venue, tier, maker_rate, taker_rate
		FROM fee_schedules
		ORDER BY venue, tier`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: load fee schedules: %w", err)
	}
	defer rows.Close()

	var entries []domain.FeeScheduleEntry
	for rows.Next() {
		var e domain.FeeScheduleEntry
		if err := rows.Scan(&e.Venue, &e.Tier, &e.MakerRate, &e.TakerRate); err != nil {
			return nil, fmt.Errorf("postgres: scan fee schedule row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate fee schedules: %w", err)
	}
	return entries, nil
}
