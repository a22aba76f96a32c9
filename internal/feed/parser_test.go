package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/tradesim/internal/domain"
)

func TestParseBookDelta(t *testing.T) {
	p := NewParser(nil, slog.Default())
	raw := json.RawMessage(`[{
		"bids": [["100.0", "5"], ["99.5", "0"]],
		"asks": [["100.5", "3"]],
		"ts": "1700000000000"
	}]`)

	receipt := time.Now().UTC()
	delta, ok := p.ParseBookDelta("BTC-USDT", raw, receipt)
	require.True(t, ok)

	assert.Equal(t, "BTC-USDT", delta.Symbol)
	assert.Equal(t, []domain.DeltaEntry{{Price: 100.0, Size: 5}, {Price: 99.5, Size: 0}}, delta.Bids)
	assert.Equal(t, []domain.DeltaEntry{{Price: 100.5, Size: 3}}, delta.Asks)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), delta.EventTime)
	assert.Equal(t, receipt, delta.ReceiptTime)
}

func TestParseBookDeltaDropsMalformedEntries(t *testing.T) {
	monitor := NewDropMonitor(0, 1, nil, slog.Default())
	p := NewParser(monitor, slog.Default())
	raw := json.RawMessage(`[{
		"bids": [["100.0", "5"], ["abc", "5"], ["-1", "5"], ["100.1", "-2"], ["NaN", "5"]],
		"asks": [["100.5", "3"], ["Inf", "1"], ["100.6"]],
		"ts": "1700000000000"
	}]`)

	delta, ok := p.ParseBookDelta("BTC-USDT", raw, time.Now())
	require.True(t, ok)
	assert.Len(t, delta.Bids, 1)
	assert.Len(t, delta.Asks, 1)

	dropped, total := monitor.Counts()
	assert.Equal(t, int64(6), dropped)
	assert.Equal(t, int64(8), total)
}

func TestParseBookDeltaAllMalformed(t *testing.T) {
	p := NewParser(nil, slog.Default())
	raw := json.RawMessage(`[{"bids": [["x", "y"]], "asks": [], "ts": "0"}]`)

	_, ok := p.ParseBookDelta("BTC-USDT", raw, time.Now())
	assert.False(t, ok)
}

func TestParseBookDeltaUnparseable(t *testing.T) {
	p := NewParser(nil, slog.Default())

	_, ok := p.ParseBookDelta("BTC-USDT", json.RawMessage(`{"not":"an array"}`), time.Now())
	assert.False(t, ok)
}

func TestParseTrades(t *testing.T) {
	p := NewParser(nil, slog.Default())
	raw := json.RawMessage(`[
		{"instId": "BTC-USDT", "px": "50000.5", "sz": "0.25", "side": "sell", "ts": "1700000000000"},
		{"instId": "BTC-USDT", "px": "50001.0", "sz": "1.5", "side": "buy", "ts": "1700000000500"}
	]`)

	prints := p.ParseTrades("BTC-USDT", raw)
	require.Len(t, prints, 2)

	assert.Equal(t, 50000.5, prints[0].Price)
	assert.Equal(t, 0.25, prints[0].Size)
	assert.Equal(t, domain.SideSell, prints[0].Side)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), prints[0].Timestamp)
	assert.Equal(t, domain.SideBuy, prints[1].Side)
}

func TestParseTradesDropsMalformed(t *testing.T) {
	monitor := NewDropMonitor(0, 1, nil, slog.Default())
	p := NewParser(monitor, slog.Default())
	raw := json.RawMessage(`[
		{"px": "50000", "sz": "1", "side": "buy", "ts": "1"},
		{"px": "0", "sz": "1", "side": "buy", "ts": "1"},
		{"px": "50000", "sz": "0", "side": "buy", "ts": "1"},
		{"px": "oops", "sz": "1", "side": "buy", "ts": "1"}
	]`)

	prints := p.ParseTrades("BTC-USDT", raw)
	assert.Len(t, prints, 1)

	dropped, total := monitor.Counts()
	assert.Equal(t, int64(3), dropped)
	assert.Equal(t, int64(4), total)
}

func TestDropMonitorEscalates(t *testing.T) {
	var escalations int
	monitor := NewDropMonitor(0.05, 10, func(_ context.Context, dropped, total int64, rate float64) {
		escalations++
		assert.Greater(t, rate, 0.05)
	}, slog.Default())

	// Nine clean entries, then a run of drops pushing the rate past 5%.
	for i := 0; i < 9; i++ {
		monitor.Record(true)
	}
	monitor.Record(false)
	assert.Equal(t, 1, escalations)

	// Within the cooldown further drops do not re-escalate.
	monitor.Record(false)
	assert.Equal(t, 1, escalations)
}

func TestDropMonitorBelowMinEvents(t *testing.T) {
	var escalations int
	monitor := NewDropMonitor(0.05, 100, func(_ context.Context, _, _ int64, _ float64) {
		escalations++
	}, slog.Default())

	for i := 0; i < 50; i++ {
		monitor.Record(false)
	}
	assert.Equal(t, 0, escalations)
}
