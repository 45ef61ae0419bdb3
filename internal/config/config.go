// Package config defines the top-level configuration for the pair trader and
// provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PAIRTRADER_* environment
// variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Feed     FeedConfig     `toml:"feed"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PairConfig names one tracked pair.
type PairConfig struct {
	SymbolA string `toml:"symbol_a"`
	SymbolB string `toml:"symbol_b"`
}

// EngineConfig holds the trading rules and schedules.
type EngineConfig struct {
	Pairs []PairConfig `toml:"pairs"`
	// EntryThreshold and ExitThreshold are z-score magnitudes. Entry must
	// strictly exceed exit or a trade could close on the tick it opened.
	EntryThreshold float64 `toml:"entry_threshold"`
	ExitThreshold  float64 `toml:"exit_threshold"`
	// Notional scales PnL per unit of spread move.
	Notional        float64 `toml:"notional"`
	StartingCapital float64 `toml:"starting_capital"`
	// BaselineMode is "ols" (regression hedge ratio) or "ratio" (fixed 1).
	BaselineMode string `toml:"baseline_mode"`
	// MinPoints is the minimum aligned observations for a valid baseline.
	MinPoints int `toml:"min_points"`
	// HistoryWindow is the trailing window fetched for each regression.
	HistoryWindow duration `toml:"history_window"`
	// BaselineRefreshInterval is the coarse recompute schedule.
	BaselineRefreshInterval duration `toml:"baseline_refresh_interval"`
	// BaselineCacheTTL bounds cached baseline staleness across restarts.
	BaselineCacheTTL duration `toml:"baseline_cache_ttl"`
	TickInterval     duration `toml:"tick_interval"`
	TickTimeout      duration `toml:"tick_timeout"`
}

// FeedConfig holds the quote API parameters.
type FeedConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
	// CacheMaxStale bounds how old a cached quote may be to stand in for a
	// failed upstream fetch. Zero disables the fallback.
	CacheMaxStale duration `toml:"cache_max_stale"`
	Exchange      string   `toml:"exchange"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for ledger
// persistence. Leave Enabled false for a purely in-memory ledger.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards all endpoints except the health check. Empty disables
	// authentication.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. The
// pair list and thresholds match the prototype watchlist this engine grew out
// of.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Pairs: []PairConfig{
				{SymbolA: "HDFCBANK", SymbolB: "ICICIBANK"},
				{SymbolA: "TCS", SymbolB: "INFY"},
				{SymbolA: "SBIN", SymbolB: "BANKBARODA"},
			},
			EntryThreshold:          2.0,
			ExitThreshold:           0.2,
			Notional:                10000,
			StartingCapital:         100000,
			BaselineMode:            "ols",
			MinPoints:               30,
			HistoryWindow:           duration{3 * 24 * time.Hour},
			BaselineRefreshInterval: duration{15 * time.Minute},
			BaselineCacheTTL:        duration{time.Hour},
			TickInterval:            duration{10 * time.Second},
			TickTimeout:             duration{8 * time.Second},
		},
		Feed: FeedConfig{
			BaseURL:       "https://quotes.example.com/api/v1",
			Timeout:       duration{5 * time.Second},
			CacheMaxStale: duration{2 * time.Minute},
			Exchange:      "NSE",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "pairtrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_opened", "trade_closed"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validBaselineModes enumerates the accepted baseline modes.
var validBaselineModes = map[string]bool{
	"ols":   true,
	"ratio": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. A configuration that fails here must
// prevent startup; values are never silently clamped.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	eng := c.Engine
	if len(eng.Pairs) == 0 {
		errs = append(errs, "engine: at least one pair must be configured")
	}
	seen := map[string]bool{}
	for i, p := range eng.Pairs {
		if p.SymbolA == "" || p.SymbolB == "" {
			errs = append(errs, fmt.Sprintf("engine: pairs[%d]: both symbols must be set", i))
			continue
		}
		if p.SymbolA == p.SymbolB {
			errs = append(errs, fmt.Sprintf("engine: pairs[%d]: symbols must differ (%s)", i, p.SymbolA))
		}
		id := p.SymbolA + "/" + p.SymbolB
		if seen[id] {
			errs = append(errs, fmt.Sprintf("engine: pairs[%d]: duplicate pair %s", i, id))
		}
		seen[id] = true
	}
	if eng.EntryThreshold <= 0 {
		errs = append(errs, "engine: entry_threshold must be > 0")
	}
	if eng.ExitThreshold < 0 {
		errs = append(errs, "engine: exit_threshold must be >= 0")
	}
	if eng.EntryThreshold <= eng.ExitThreshold {
		errs = append(errs, fmt.Sprintf(
			"engine: entry_threshold (%g) must exceed exit_threshold (%g)",
			eng.EntryThreshold, eng.ExitThreshold,
		))
	}
	if eng.Notional <= 0 {
		errs = append(errs, "engine: notional must be > 0")
	}
	if eng.StartingCapital < 0 || math.IsNaN(eng.StartingCapital) {
		errs = append(errs, "engine: starting_capital must be >= 0")
	}
	if !validBaselineModes[strings.ToLower(eng.BaselineMode)] {
		errs = append(errs, fmt.Sprintf("engine: unknown baseline_mode %q (valid: ols, ratio)", eng.BaselineMode))
	}
	if eng.MinPoints < 2 {
		errs = append(errs, "engine: min_points must be >= 2")
	}
	if eng.HistoryWindow.Duration <= 0 {
		errs = append(errs, "engine: history_window must be positive")
	}
	if eng.BaselineRefreshInterval.Duration <= 0 {
		errs = append(errs, "engine: baseline_refresh_interval must be positive")
	}
	if eng.TickInterval.Duration <= 0 {
		errs = append(errs, "engine: tick_interval must be positive")
	}
	if eng.BaselineRefreshInterval.Duration < eng.TickInterval.Duration {
		errs = append(errs, "engine: baseline_refresh_interval must not be finer than tick_interval")
	}

	// Feed
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	}
	if c.Feed.Timeout.Duration <= 0 {
		errs = append(errs, "feed: timeout must be positive")
	}
	if c.Feed.CacheMaxStale.Duration < 0 {
		errs = append(errs, "feed: cache_max_stale must not be negative")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
