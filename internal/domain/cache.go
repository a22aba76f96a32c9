package domain

import "context"

// MetricsCache stores the most recent MetricsSnapshot per symbol for
// dashboard queries. Only the latest snapshot is retained.
type MetricsCache interface {
	// SetLatest overwrites the cached snapshot for the snapshot's symbol.
	SetLatest(ctx context.Context, snap MetricsSnapshot) error
	// GetLatest returns the cached snapshot for a symbol, or ErrNotFound.
	GetLatest(ctx context.Context, symbol string) (MetricsSnapshot, error)
}

// SignalBus is a publish/subscribe transport used to fan metrics out to
// dashboard consumers.
type SignalBus interface {
	// Publish sends a raw payload to a channel.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a read-only channel of payloads for a channel name.
	// The returned channel closes when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
