package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/engine"
)

// Server exposes the dashboard HTTP surface:
//
//	GET /healthz              - liveness
//	GET /v1/status            - orchestrator event counters
//	GET /v1/metrics/{symbol}  - latest MetricsSnapshot for a symbol
//	GET /ws                   - live metrics stream
type Server struct {
	addr    string
	hub     *Hub
	metrics domain.MetricsCache
	orch    *engine.Orchestrator
	logger  *slog.Logger
}

// New creates a Server. metrics may be nil when no cache is configured; the
// metrics endpoint then reports 404 for every symbol.
func New(addr string, hub *Hub, metrics domain.MetricsCache, orch *engine.Orchestrator, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		hub:     hub,
		metrics: metrics,
		orch:    orch,
		logger:  logger.With(slog.String("component", "server")),
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/metrics/{symbol}", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.hub.HandleWS)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Stats())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if s.metrics == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "metrics cache not configured"})
		return
	}

	snap, err := s.metrics.GetLatest(r.Context(), symbol)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no metrics for symbol"})
		return
	}
	if err != nil {
		s.logger.Error("metrics lookup failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
