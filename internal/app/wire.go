package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfeed/tradesim/internal/cache/redis"
	"github.com/quantfeed/tradesim/internal/config"
	"github.com/quantfeed/tradesim/internal/domain"
	"github.com/quantfeed/tradesim/internal/fees"
	"github.com/quantfeed/tradesim/internal/notify"
	"github.com/quantfeed/tradesim/internal/store/postgres"
)

// Dependencies holds the shared infrastructure handles built by Wire. The
// optional handles (MetricsCache, SignalBus) are nil when the backing
// service is disabled in configuration.
type Dependencies struct {
	FeeScheduler *fees.Scheduler
	MetricsCache domain.MetricsCache
	SignalBus    domain.SignalBus
	Notifier     *notify.Notifier
}

// Wire builds external dependencies from the configuration: the fee schedule
// (from TOML or PostgreSQL), the optional Redis cache and signal bus, and
// the operator notifier. The returned cleanup function closes everything
// that was opened, in reverse order.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default().With(slog.String("component", "wire"))

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	scheduler, err := buildFeeScheduler(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		FeeScheduler: scheduler,
		Notifier:     buildNotifier(cfg, logger),
	}

	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: connect redis: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close failed", slog.String("error", err.Error()))
			}
		})

		ttl := time.Duration(cfg.Redis.MetricsTTLSeconds) * time.Second
		deps.MetricsCache = redis.NewMetricsCache(client, ttl)
		deps.SignalBus = redis.NewSignalBus(client)
		logger.InfoContext(ctx, "redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	return deps, cleanup, nil
}

// buildFeeScheduler loads the fee schedule from PostgreSQL when enabled,
// otherwise from the TOML schedule. The reference table is read once; the
// pool is closed before returning.
func buildFeeScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*fees.Scheduler, error) {
	if !cfg.Postgres.Enabled {
		entries := make([]domain.FeeScheduleEntry, 0, len(cfg.Fees.Schedule))
		for _, e := range cfg.Fees.Schedule {
			entries = append(entries, domain.FeeScheduleEntry{
				Venue:     e.Venue,
				Tier:      e.Tier,
				MakerRate: e.Maker,
				TakerRate: e.Taker,
			})
		}
		return fees.NewScheduler(entries), nil
	}

	client, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	defer client.Close()

	entries, err := postgres.NewFeeScheduleStore(client.Pool()).LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load fee schedule: %w", err)
	}
	logger.InfoContext(ctx, "fee schedule loaded from postgres", slog.Int("entries", len(entries)))
	return fees.NewScheduler(entries), nil
}

// buildNotifier assembles the operator notifier. Without a webhook URL the
// notifier has no senders and Notify becomes a no-op.
func buildNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, slog.Default())
}

// metricsFanout forwards each published snapshot to the dashboard hub and,
// when wired, the Redis metrics cache and signal bus. It runs on the lane
// goroutine, so failures are logged and never propagate back to the engine.
type metricsFanout struct {
	hub    publisher
	cache  domain.MetricsCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// publisher is the hub-facing subset used by the fanout.
type publisher interface {
	PublishMetrics(ctx context.Context, snap domain.MetricsSnapshot)
}

// PublishMetrics implements engine.Subscriber.
func (f *metricsFanout) PublishMetrics(ctx context.Context, snap domain.MetricsSnapshot) {
	if f.hub != nil {
		f.hub.PublishMetrics(ctx, snap)
	}
	if f.cache != nil {
		if err := f.cache.SetLatest(ctx, snap); err != nil {
			f.logger.Warn("metrics cache write failed",
				slog.String("symbol", snap.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	if f.bus != nil {
		payload, err := json.Marshal(snap)
		if err != nil {
			f.logger.Warn("metrics marshal failed", slog.String("error", err.Error()))
			return
		}
		if err := f.bus.Publish(ctx, "metrics:"+snap.Symbol, payload); err != nil {
			f.logger.Warn("signal bus publish failed",
				slog.String("symbol", snap.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}
