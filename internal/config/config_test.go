package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateEntryMustExceedExit(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.EntryThreshold = 1.0
	cfg.Engine.ExitThreshold = 1.0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_threshold")

	cfg.Engine.ExitThreshold = 2.0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPairs(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.Pairs = nil
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Engine.Pairs = []PairConfig{{SymbolA: "TCS", SymbolB: "TCS"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbols must differ")

	cfg = Defaults()
	cfg.Engine.Pairs = []PairConfig{
		{SymbolA: "TCS", SymbolB: "INFY"},
		{SymbolA: "TCS", SymbolB: "INFY"},
	}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate pair")
}

func TestValidateRejectsNegativeCapital(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.StartingCapital = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting_capital")
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	require.Error(t, cfg.Validate())
}

func TestValidateRefreshNotFinerThanTick(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.BaselineRefreshInterval = duration{time.Second}
	cfg.Engine.TickInterval = duration{10 * time.Second}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseline_refresh_interval")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Engine.Notional = 0
	cfg.Redis.Addr = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
	assert.Contains(t, err.Error(), "notional")
	assert.Contains(t, err.Error(), "redis")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"

[engine]
entry_threshold = 2.5
tick_interval = "30s"

[[engine.pairs]]
symbol_a = "TCS"
symbol_b = "INFY"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 2.5, cfg.Engine.EntryThreshold)
	assert.Equal(t, 30*time.Second, cfg.Engine.TickInterval.Duration)
	require.Len(t, cfg.Engine.Pairs, 1)
	assert.Equal(t, "TCS", cfg.Engine.Pairs[0].SymbolA)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0.2, cfg.Engine.ExitThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PAIRTRADER_ENGINE_ENTRY_THRESHOLD", "3.5")
	t.Setenv("PAIRTRADER_FEED_API_KEY", "from-env")
	t.Setenv("PAIRTRADER_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("PAIRTRADER_ENGINE_TICK_INTERVAL", "5s")
	t.Setenv("PAIRTRADER_POSTGRES_ENABLED", "true")
	t.Setenv("PAIRTRADER_NOTIFY_EVENTS", "trade_opened, trade_closed")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 3.5, cfg.Engine.EntryThreshold)
	assert.Equal(t, "from-env", cfg.Feed.APIKey)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Engine.TickInterval.Duration)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, []string{"trade_opened", "trade_closed"}, cfg.Notify.Events)
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("PAIRTRADER_ENGINE_ENTRY_THRESHOLD", "not-a-number")
	t.Setenv("PAIRTRADER_ENGINE_TICK_INTERVAL", "soon")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 2.0, cfg.Engine.EntryThreshold)
	assert.Equal(t, 10*time.Second, cfg.Engine.TickInterval.Duration)
}
