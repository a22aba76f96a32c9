package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/engine"
)

// reconnectDelay is the pause between reconnection attempts.
const reconnectDelay = 2 * time.Second

// Feeder bridges the venue WebSocket client to the orchestrator, reconnecting
// with a fixed delay when the connection drops.
type Feeder struct {
	wsURL   string
	symbols []string
	parser  *Parser
	orch    *engine.Orchestrator
	logger  *slog.Logger
}

// NewFeeder creates a Feeder for the given endpoint and symbols.
func NewFeeder(wsURL string, symbols []string, parser *Parser, orch *engine.Orchestrator, logger *slog.Logger) *Feeder {
	return &Feeder{
		wsURL:   wsURL,
		symbols: symbols,
		parser:  parser,
		orch:    orch,
		logger:  logger.With(slog.String("component", "feeder")),
	}
}

// Run connects and forwards events until ctx is cancelled, reconnecting on
// disconnect.
func (f *Feeder) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols configured, feeder exiting")
		return nil
	}

	client := NewWSClient(f.wsURL, f.symbols, f.parser, f.onDelta, f.onTrade, f.logger)
	for {
		err := client.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *Feeder) onDelta(ctx context.Context, delta domain.BookDelta) {
	if err := f.orch.SubmitBookUpdate(ctx, delta); err != nil {
		f.logger.Debug("book update not submitted", slog.String("error", err.Error()))
	}
}

func (f *Feeder) onTrade(ctx context.Context, print domain.TradePrint) {
	if err := f.orch.SubmitTradePrint(ctx, print); err != nil {
		f.logger.Debug("trade print not submitted", slog.String("error", err.Error()))
	}
}
