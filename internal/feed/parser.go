// Package feed delivers market data into the analytics pipeline: a WebSocket
// client for OKX-style venue feeds, the boundary parser that turns raw
// payloads into validated domain events, and a synthetic feed for offline
// runs. Parsing and validation happen exactly once here; downstream
// components only see typed, validated events.
package feed

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/quantfeed/tradesim/internal/domain"
)

// wsMessage is the envelope of a venue feed frame.
type wsMessage struct {
	Event  string `json:"event"`
	Action string `json:"action"`
	Arg    struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data json.RawMessage `json:"data"`
}

// bookPayload is one element of a books-channel data array. Levels arrive as
// ["price", "size", ...] string tuples; a size of "0" deletes the level.
type bookPayload struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

// tradePayload is one element of a trades-channel data array.
type tradePayload struct {
	InstID string `json:"instId"`
	Px     string `json:"px"`
	Sz     string `json:"sz"`
	Side   string `json:"side"`
	Ts     string `json:"ts"`
}

// Parser converts raw feed frames into domain events. Malformed delta entries
// (non-numeric, non-finite, or negative price/size) are dropped and counted
// through the DropMonitor rather than propagated.
type Parser struct {
	monitor *DropMonitor
	logger  *slog.Logger
}

// NewParser creates a Parser. monitor may be nil when drop-rate escalation is
// not wanted.
func NewParser(monitor *DropMonitor, logger *slog.Logger) *Parser {
	return &Parser{
		monitor: monitor,
		logger:  logger.With(slog.String("component", "feed_parser")),
	}
}

// ParseBookDelta converts a books-channel payload into a BookDelta. The
// second return is false when the payload carries no usable entries at all.
func (p *Parser) ParseBookDelta(symbol string, raw json.RawMessage, receipt time.Time) (domain.BookDelta, bool) {
	var payloads []bookPayload
	if err := json.Unmarshal(raw, &payloads); err != nil || len(payloads) == 0 {
		p.logger.Debug("unparseable book payload", slog.String("symbol", symbol))
		return domain.BookDelta{}, false
	}

	delta := domain.BookDelta{Symbol: symbol, ReceiptTime: receipt}
	for _, pl := range payloads {
		delta.Bids = append(delta.Bids, p.parseLevels(pl.Bids)...)
		delta.Asks = append(delta.Asks, p.parseLevels(pl.Asks)...)
		if ms, err := strconv.ParseInt(pl.Ts, 10, 64); err == nil {
			delta.EventTime = time.UnixMilli(ms).UTC()
		}
	}
	if len(delta.Bids) == 0 && len(delta.Asks) == 0 {
		return domain.BookDelta{}, false
	}
	return delta, true
}

// parseLevels validates raw level tuples, keeping well-formed entries and
// counting the rest as drops.
func (p *Parser) parseLevels(raw [][]string) []domain.DeltaEntry {
	entries := make([]domain.DeltaEntry, 0, len(raw))
	for _, tuple := range raw {
		entry, ok := parseLevel(tuple)
		if p.monitor != nil {
			p.monitor.Record(ok)
		}
		if !ok {
			p.logger.Debug("malformed delta entry dropped", slog.Any("tuple", tuple))
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseLevel accepts [price, size, ...] with a strictly positive finite price
// and a non-negative finite size (0 = delete).
func parseLevel(tuple []string) (domain.DeltaEntry, bool) {
	if len(tuple) < 2 {
		return domain.DeltaEntry{}, false
	}
	price, err := strconv.ParseFloat(tuple[0], 64)
	if err != nil || !finite(price) || price <= 0 {
		return domain.DeltaEntry{}, false
	}
	size, err := strconv.ParseFloat(tuple[1], 64)
	if err != nil || !finite(size) || size < 0 {
		return domain.DeltaEntry{}, false
	}
	return domain.DeltaEntry{Price: price, Size: size}, true
}

// ParseTrades converts a trades-channel payload into trade prints, dropping
// malformed ones.
func (p *Parser) ParseTrades(symbol string, raw json.RawMessage) []domain.TradePrint {
	var payloads []tradePayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		p.logger.Debug("unparseable trade payload", slog.String("symbol", symbol))
		return nil
	}

	prints := make([]domain.TradePrint, 0, len(payloads))
	for _, pl := range payloads {
		print, ok := parseTrade(symbol, pl)
		if p.monitor != nil {
			p.monitor.Record(ok)
		}
		if !ok {
			p.logger.Debug("malformed trade dropped", slog.String("symbol", symbol))
			continue
		}
		prints = append(prints, print)
	}
	return prints
}

func parseTrade(symbol string, pl tradePayload) (domain.TradePrint, bool) {
	price, err := strconv.ParseFloat(pl.Px, 64)
	if err != nil || !finite(price) || price <= 0 {
		return domain.TradePrint{}, false
	}
	size, err := strconv.ParseFloat(pl.Sz, 64)
	if err != nil || !finite(size) || size <= 0 {
		return domain.TradePrint{}, false
	}

	side := domain.SideBuy
	if pl.Side == "sell" {
		side = domain.SideSell
	}

	ts := time.Now().UTC()
	if ms, err := strconv.ParseInt(pl.Ts, 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}

	return domain.TradePrint{
		Symbol:    symbol,
		Price:     price,
		Size:      size,
		Side:      side,
		Timestamp: ts,
	}, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
