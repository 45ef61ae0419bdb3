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
// built-in defaults, applies PAIRTRADER_* environment variable overrides, and
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

// applyEnvOverrides reads well-known PAIRTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setFloat64(&cfg.Engine.EntryThreshold, "PAIRTRADER_ENGINE_ENTRY_THRESHOLD")
	setFloat64(&cfg.Engine.ExitThreshold, "PAIRTRADER_ENGINE_EXIT_THRESHOLD")
	setFloat64(&cfg.Engine.Notional, "PAIRTRADER_ENGINE_NOTIONAL")
	setFloat64(&cfg.Engine.StartingCapital, "PAIRTRADER_ENGINE_STARTING_CAPITAL")
	setStr(&cfg.Engine.BaselineMode, "PAIRTRADER_ENGINE_BASELINE_MODE")
	setInt(&cfg.Engine.MinPoints, "PAIRTRADER_ENGINE_MIN_POINTS")
	setDuration(&cfg.Engine.HistoryWindow, "PAIRTRADER_ENGINE_HISTORY_WINDOW")
	setDuration(&cfg.Engine.BaselineRefreshInterval, "PAIRTRADER_ENGINE_BASELINE_REFRESH_INTERVAL")
	setDuration(&cfg.Engine.BaselineCacheTTL, "PAIRTRADER_ENGINE_BASELINE_CACHE_TTL")
	setDuration(&cfg.Engine.TickInterval, "PAIRTRADER_ENGINE_TICK_INTERVAL")
	setDuration(&cfg.Engine.TickTimeout, "PAIRTRADER_ENGINE_TICK_TIMEOUT")

	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "PAIRTRADER_FEED_BASE_URL")
	setStr(&cfg.Feed.APIKey, "PAIRTRADER_FEED_API_KEY")
	setDuration(&cfg.Feed.Timeout, "PAIRTRADER_FEED_TIMEOUT")
	setDuration(&cfg.Feed.CacheMaxStale, "PAIRTRADER_FEED_CACHE_MAX_STALE")
	setStr(&cfg.Feed.Exchange, "PAIRTRADER_FEED_EXCHANGE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PAIRTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAIRTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAIRTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PAIRTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PAIRTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PAIRTRADER_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PAIRTRADER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PAIRTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PAIRTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PAIRTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PAIRTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PAIRTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PAIRTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PAIRTRADER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PAIRTRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PAIRTRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PAIRTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PAIRTRADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PAIRTRADER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PAIRTRADER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PAIRTRADER_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PAIRTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PAIRTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PAIRTRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PAIRTRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PAIRTRADER_MODE")
	setStr(&cfg.LogLevel, "PAIRTRADER_LOG_LEVEL")
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
