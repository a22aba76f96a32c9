package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// escalateCooldown limits how often a sustained drop rate re-escalates.
const escalateCooldown = time.Minute

// EscalateFunc delivers a process-level warning, typically through the
// notifier.
type EscalateFunc func(ctx context.Context, dropped, total int64, rate float64)

// DropMonitor counts malformed feed entries against total entries seen. When
// the drop rate stays above the configured threshold it escalates a
// process-level warning, at most once per cooldown; ingestion itself is never
// halted.
type DropMonitor struct {
	threshold float64
	minEvents int64
	escalate  EscalateFunc
	logger    *slog.Logger

	total        atomic.Int64
	dropped      atomic.Int64
	lastEscalate atomic.Int64 // unix nanos
}

// NewDropMonitor creates a monitor that escalates once the observed drop rate
// over at least minEvents entries exceeds threshold (a fraction, e.g. 0.05).
func NewDropMonitor(threshold float64, minEvents int64, escalate EscalateFunc, logger *slog.Logger) *DropMonitor {
	if minEvents <= 0 {
		minEvents = 100
	}
	return &DropMonitor{
		threshold: threshold,
		minEvents: minEvents,
		escalate:  escalate,
		logger:    logger.With(slog.String("component", "drop_monitor")),
	}
}

// Record counts one parsed entry; ok is false for a dropped malformed entry.
func (m *DropMonitor) Record(ok bool) {
	total := m.total.Add(1)
	if ok {
		return
	}
	dropped := m.dropped.Add(1)

	if m.threshold <= 0 || total < m.minEvents {
		return
	}
	rate := float64(dropped) / float64(total)
	if rate <= m.threshold {
		return
	}

	now := time.Now().UnixNano()
	last := m.lastEscalate.Load()
	if now-last < int64(escalateCooldown) || !m.lastEscalate.CompareAndSwap(last, now) {
		return
	}

	m.logger.Warn("sustained malformed entry rate",
		slog.Int64("dropped", dropped),
		slog.Int64("total", total),
		slog.Float64("rate", rate),
	)
	if m.escalate != nil {
		m.escalate(context.Background(), dropped, total, rate)
	}
}

// Counts returns the cumulative totals.
func (m *DropMonitor) Counts() (dropped, total int64) {
	return m.dropped.Load(), m.total.Load()
}
