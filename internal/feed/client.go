package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfeed/tradesim/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// DeltaHandler receives each validated book delta.
type DeltaHandler func(ctx context.Context, delta domain.BookDelta)

// TradeHandler receives each validated trade print.
type TradeHandler func(ctx context.Context, print domain.TradePrint)

// subscribeArg identifies one channel+symbol subscription.
type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// subscribeCmd is the subscription request frame.
type subscribeCmd struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

// WSClient is a WebSocket client for an OKX-style public market data feed.
// It subscribes to the books and trades channels for the configured symbols
// and dispatches validated events through the Parser. The venue delivers
// updates reliably and in order per symbol; the client preserves that order
// by dispatching from a single read loop.
type WSClient struct {
	wsURL   string
	symbols []string
	parser  *Parser
	onDelta DeltaHandler
	onTrade TradeHandler
	logger  *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSClient creates a client for the given endpoint and symbols.
func NewWSClient(wsURL string, symbols []string, parser *Parser, onDelta DeltaHandler, onTrade TradeHandler, logger *slog.Logger) *WSClient {
	return &WSClient{
		wsURL:   wsURL,
		symbols: symbols,
		parser:  parser,
		onDelta: onDelta,
		onTrade: onTrade,
		logger:  logger.With(slog.String("component", "ws_feed")),
	}
}

// Run connects, subscribes, and processes frames until ctx is cancelled or
// the connection drops; the caller owns reconnection policy.
func (c *WSClient) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", c.wsURL, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := c.subscribe(conn); err != nil {
		return err
	}
	c.logger.Info("feed subscribed",
		slog.String("url", c.wsURL),
		slog.Int("symbols", len(c.symbols)),
	)

	// Close the connection when ctx is cancelled so the read loop unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-stop:
		}
	}()
	go c.pingLoop(ctx, conn, stop)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		c.dispatch(ctx, raw)
	}
}

func (c *WSClient) subscribe(conn *websocket.Conn) error {
	args := make([]subscribeArg, 0, 2*len(c.symbols))
	for _, sym := range c.symbols {
		args = append(args,
			subscribeArg{Channel: "books", InstID: sym},
			subscribeArg{Channel: "trades", InstID: sym},
		)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeCmd{Op: "subscribe", Args: args}); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one raw frame to the matching handler.
func (c *WSClient) dispatch(ctx context.Context, raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Debug("unparseable frame", slog.Int("len", len(raw)))
		return
	}
	if msg.Event != "" || len(msg.Data) == 0 {
		// Subscription acks and errors carry an event field.
		if msg.Event == "error" {
			c.logger.Warn("feed error frame", slog.String("frame", string(raw)))
		}
		return
	}

	switch msg.Arg.Channel {
	case "books":
		delta, ok := c.parser.ParseBookDelta(msg.Arg.InstID, msg.Data, time.Now().UTC())
		if ok && c.onDelta != nil {
			// The venue sends a full snapshot on connect and after every
			// reconnect; it replaces the book instead of patching it.
			delta.Snapshot = msg.Action == "snapshot"
			c.onDelta(ctx, delta)
		}
	case "trades":
		for _, print := range c.parser.ParseTrades(msg.Arg.InstID, msg.Data) {
			if c.onTrade != nil {
				c.onTrade(ctx, print)
			}
		}
	}
}
