package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfeed/tradesim/internal/domain"
)

// MetricsCache implements domain.MetricsCache. Only the latest snapshot per
// symbol is kept, stored as JSON at "metrics:{symbol}" with a TTL so stale
// symbols age out.
type MetricsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMetricsCache creates a MetricsCache backed by the given Client. A zero
// ttl keeps snapshots until overwritten.
func NewMetricsCache(c *Client, ttl time.Duration) *MetricsCache {
	return &MetricsCache{rdb: c.rdb, ttl: ttl}
}

func metricsKey(symbol string) string { return "metrics:" + symbol }

// SetLatest overwrites the cached snapshot for the snapshot's symbol.
func (mc *MetricsCache) SetLatest(ctx context.Context, snap domain.MetricsSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal metrics %s: %w", snap.Symbol, err)
	}
	if err := mc.rdb.Set(ctx, metricsKey(snap.Symbol), payload, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set metrics %s: %w", snap.Symbol, err)
	}
	return nil
}

// GetLatest returns the cached snapshot for a symbol, or domain.ErrNotFound.
func (mc *MetricsCache) GetLatest(ctx context.Context, symbol string) (domain.MetricsSnapshot, error) {
	payload, err := mc.rdb.Get(ctx, metricsKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.MetricsSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("redis: get metrics %s: %w", symbol, err)
	}

	var snap domain.MetricsSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("redis: unmarshal metrics %s: %w", symbol, err)
	}
	return snap, nil
}
