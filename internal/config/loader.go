package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADESIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADESIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject connection details at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "TRADESIM_FEED_WS_URL")
	setStringSlice(&cfg.Feed.Symbols, "TRADESIM_FEED_SYMBOLS")
	setFloat64(&cfg.Feed.MalformedRateThreshold, "TRADESIM_FEED_MALFORMED_RATE_THRESHOLD")
	setInt64(&cfg.Feed.MalformedMinEvents, "TRADESIM_FEED_MALFORMED_MIN_EVENTS")

	// ── Sim ──
	setFloat64(&cfg.Sim.StartPrice, "TRADESIM_SIM_START_PRICE")
	setDuration(&cfg.Sim.Interval, "TRADESIM_SIM_INTERVAL")
	setInt64(&cfg.Sim.Seed, "TRADESIM_SIM_SEED")

	// ── Analytics ──
	setFloat64(&cfg.Analytics.OrderQuantity, "TRADESIM_ANALYTICS_ORDER_QUANTITY")
	setStr(&cfg.Analytics.OrderSide, "TRADESIM_ANALYTICS_ORDER_SIDE")
	setStr(&cfg.Analytics.Venue, "TRADESIM_ANALYTICS_VENUE")
	setInt(&cfg.Analytics.FeeTier, "TRADESIM_ANALYTICS_FEE_TIER")
	setInt(&cfg.Analytics.DepthLevels, "TRADESIM_ANALYTICS_DEPTH_LEVELS")
	setFloat64(&cfg.Analytics.DepthBandPct, "TRADESIM_ANALYTICS_DEPTH_BAND_PCT")
	setInt(&cfg.Analytics.VolatilityWindow, "TRADESIM_ANALYTICS_VOLATILITY_WINDOW")
	setFloat64(&cfg.Analytics.PeriodsPerYear, "TRADESIM_ANALYTICS_PERIODS_PER_YEAR")
	setInt(&cfg.Analytics.SlippageWindow, "TRADESIM_ANALYTICS_SLIPPAGE_WINDOW")
	setInt(&cfg.Analytics.RefitEvery, "TRADESIM_ANALYTICS_REFIT_EVERY")
	setFloat64(&cfg.Analytics.WorstCaseQuantile, "TRADESIM_ANALYTICS_WORST_CASE_QUANTILE")
	setFloat64(&cfg.Analytics.RiskAversion, "TRADESIM_ANALYTICS_RISK_AVERSION")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADESIM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADESIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADESIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADESIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADESIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADESIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADESIM_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.MetricsTTLSeconds, "TRADESIM_REDIS_METRICS_TTL_SECONDS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRADESIM_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRADESIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADESIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADESIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADESIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADESIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADESIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADESIM_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.MaxConns, "TRADESIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.MinConns, "TRADESIM_POSTGRES_POOL_MIN_CONNS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADESIM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADESIM_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.WebhookURL, "TRADESIM_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADESIM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADESIM_MODE")
	setStr(&cfg.LogLevel, "TRADESIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
