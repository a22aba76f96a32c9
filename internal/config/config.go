// Package config defines the top-level configuration for the trade cost
// estimator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRADESIM_* environment
// variables.
type Config struct {
	Feed      FeedConfig      `toml:"feed"`
	Sim       SimConfig       `toml:"sim"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Fees      FeesConfig      `toml:"fees"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig holds venue feed parameters and the malformed-entry escalation
// thresholds applied at the feed boundary.
type FeedConfig struct {
	WsURL                  string   `toml:"ws_url"`
	Symbols                []string `toml:"symbols"`
	MalformedRateThreshold float64  `toml:"malformed_rate_threshold"`
	MalformedMinEvents     int64    `toml:"malformed_min_events"`
}

// SimConfig holds the synthetic feed parameters used in sim mode.
type SimConfig struct {
	StartPrice float64  `toml:"start_price"`
	Interval   duration `toml:"interval"`
	Seed       int64    `toml:"seed"`
}

// AnalyticsConfig holds the per-run analytics parameters shared by all
// symbol lanes.
type AnalyticsConfig struct {
	OrderQuantity     float64 `toml:"order_quantity"`
	OrderSide         string  `toml:"order_side"`
	Venue             string  `toml:"venue"`
	FeeTier           int     `toml:"fee_tier"`
	DepthLevels       int     `toml:"depth_levels"`
	DepthBandPct      float64 `toml:"depth_band_pct"`
	VolatilityWindow  int     `toml:"volatility_window"`
	PeriodsPerYear    float64 `toml:"periods_per_year"`
	SlippageWindow    int     `toml:"slippage_window"`
	RefitEvery        int     `toml:"refit_every"`
	WorstCaseQuantile float64 `toml:"worst_case_quantile"`
	RiskAversion      float64 `toml:"risk_aversion"`
	LaneBuffer        int     `toml:"lane_buffer"`
}

// FeeTierConfig is one fee schedule entry in the TOML file.
type FeeTierConfig struct {
	Venue string  `toml:"venue"`
	Tier  int     `toml:"tier"`
	Maker float64 `toml:"maker"`
	Taker float64 `toml:"taker"`
}

// FeesConfig holds the static fee schedule.
type FeesConfig struct {
	Schedule []FeeTierConfig `toml:"schedule"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// disabled the metrics cache and signal bus are simply not wired.
type RedisConfig struct {
	Enabled           bool   `toml:"enabled"`
	Addr              string `toml:"addr"`
	Password          string `toml:"password"`
	DB                int    `toml:"db"`
	PoolSize          int    `toml:"pool_size"`
	MaxRetries        int    `toml:"max_retries"`
	TLSEnabled        bool   `toml:"tls_enabled"`
	MetricsTTLSeconds int    `toml:"metrics_ttl_seconds"`
}

// PostgresConfig holds the optional fee-schedule reference database. When
// enabled the schedule is loaded from the fee_schedules table instead of the
// TOML file.
type PostgresConfig struct {
	Enabled  bool   `toml:"enabled"`
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
	MaxConns int    `toml:"pool_max_conns"`
	MinConns int    `toml:"pool_min_conns"`
}

// ServerConfig holds the dashboard HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds operator notification parameters.
type NotifyConfig struct {
	WebhookURL string   `toml:"webhook_url"`
	Events     []string `toml:"events"`
}

// Defaults returns a Config with sensible development defaults.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			WsURL:                  "wss://ws.okx.com:8443/ws/v5/public",
			Symbols:                []string{"BTC-USDT"},
			MalformedRateThreshold: 0.05,
			MalformedMinEvents:     500,
		},
		Sim: SimConfig{
			StartPrice: 50000,
			Interval:   duration{100 * time.Millisecond},
			Seed:       1,
		},
		Analytics: AnalyticsConfig{
			OrderQuantity:     100,
			OrderSide:         "BUY",
			Venue:             "OKX",
			FeeTier:           1,
			DepthLevels:       20,
			DepthBandPct:      0.10,
			VolatilityWindow:  100,
			PeriodsPerYear:    365 * 24 * 60,
			SlippageWindow:    1000,
			RefitEvery:        100,
			WorstCaseQuantile: 0.95,
			RiskAversion:      0.1,
			LaneBuffer:        256,
		},
		Fees: FeesConfig{
			Schedule: []FeeTierConfig{
				{Venue: "OKX", Tier: 1, Maker: 0.0008, Taker: 0.0010},
			},
		},
		Redis: RedisConfig{
			Addr:              "localhost:6379",
			PoolSize:          10,
			MaxRetries:        3,
			MetricsTTLSeconds: 300,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "sim",
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface later at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "live", "sim":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol is required")
	}
	if c.Mode == "live" && strings.TrimSpace(c.Feed.WsURL) == "" {
		return fmt.Errorf("config: feed.ws_url is required in live mode")
	}

	a := c.Analytics
	if a.OrderQuantity <= 0 {
		return fmt.Errorf("config: analytics.order_quantity must be positive")
	}
	if a.OrderSide != "BUY" && a.OrderSide != "SELL" {
		return fmt.Errorf("config: analytics.order_side must be BUY or SELL")
	}
	if a.PeriodsPerYear <= 0 {
		return fmt.Errorf("config: analytics.periods_per_year must be positive")
	}
	if a.WorstCaseQuantile <= 0 || a.WorstCaseQuantile >= 1 {
		return fmt.Errorf("config: analytics.worst_case_quantile must be in (0, 1)")
	}
	if a.DepthBandPct <= 0 {
		return fmt.Errorf("config: analytics.depth_band_pct must be positive")
	}

	if !c.Postgres.Enabled && len(c.Fees.Schedule) == 0 {
		return fmt.Errorf("config: fees.schedule is required without postgres")
	}
	for _, e := range c.Fees.Schedule {
		if strings.TrimSpace(e.Venue) == "" {
			return fmt.Errorf("config: fee schedule entry without venue")
		}
		if e.Maker < 0 || e.Taker < 0 {
			return fmt.Errorf("config: negative fee rate for venue %q tier %d", e.Venue, e.Tier)
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	return nil
}

// duration wraps time.Duration for TOML strings like "100ms".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}
