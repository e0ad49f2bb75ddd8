package config

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "compete"
log_level = "debug"

[competition]
initial_capital = 25000.0
cycle_interval = "30s"
decision_timeout = "5s"
max_cycles = 10

[[competition.agents]]
id = "momo-1"
engine = "momentum"
params = { order_notional = 2000.0, allow_short = true }

[[competition.agents]]
id = "sleeper"
engine = "hold"

[gateway]
default_slippage_bps = 8.0
fee_bps = 12.0

[features]
symbols = ["BTC", "ETH"]
seed = 42

[server]
enabled = true
port = 9090
api_key = "sekrit"
`

func decodeSample(t *testing.T) Config {
	t.Helper()
	cfg := Defaults()
	_, err := toml.Decode(sampleTOML, &cfg)
	require.NoError(t, err)
	return cfg
}

func TestDecodeOverDefaults(t *testing.T) {
	cfg := decodeSample(t)

	assert.Equal(t, "compete", cfg.Mode)
	assert.Equal(t, 25_000.0, cfg.Competition.InitialCapital)
	assert.Equal(t, 30*time.Second, cfg.Competition.CycleInterval.Duration)
	assert.Equal(t, 5*time.Second, cfg.Competition.DecisionTimeout.Duration)

	require.Len(t, cfg.Competition.Agents, 2)
	assert.Equal(t, "momo-1", cfg.Competition.Agents[0].ID)
	assert.Equal(t, "momentum", cfg.Competition.Agents[0].Engine)
	assert.Equal(t, true, cfg.Competition.Agents[0].Params["allow_short"])
	assert.Equal(t, "hold", cfg.Competition.Agents[1].Engine)

	// Untouched sections keep their defaults.
	assert.Equal(t, 0.5, cfg.Ledger.ShortMarginFraction)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadRoster(t *testing.T) {
	cfg := decodeSample(t)
	cfg.Competition.Agents = append(cfg.Competition.Agents, AgentConfig{ID: "momo-1", Engine: "momentum"})

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate agent id")
}

func TestValidateRejectsEmptyRoster(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one agent")
}

func TestValidateMonitorNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")

	cfg.Redis.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestValidateModeIsCaseInsensitive(t *testing.T) {
	// Run dispatches on the lowercased mode, so validation must apply the
	// monitor rules to "Monitor" exactly as it does to "monitor".
	cfg := decodeSample(t)
	cfg.Mode = "Monitor"
	cfg.Redis.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: must be enabled for monitor mode")

	cfg.Redis.Enabled = true
	require.NoError(t, cfg.Validate())

	cfg.Mode = "COMPETE"
	cfg.Competition.Agents = nil
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one agent")
}

func TestValidateMarginFractionBounds(t *testing.T) {
	cfg := decodeSample(t)
	cfg.Ledger.ShortMarginFraction = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short_margin_fraction")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARENA_MODE", "once")
	t.Setenv("ARENA_COMPETITION_CYCLE_INTERVAL", "2m")
	t.Setenv("ARENA_FEATURES_SYMBOLS", "DOGE, PEPE")
	t.Setenv("ARENA_SERVER_PORT", "7777")
	t.Setenv("ARENA_REDIS_ENABLED", "true")

	cfg := decodeSample(t)
	applyEnvOverrides(&cfg)

	assert.Equal(t, "once", cfg.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Competition.CycleInterval.Duration)
	assert.Equal(t, []string{"DOGE", "PEPE"}, cfg.Features.Symbols)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
}

func TestRedactedConfig(t *testing.T) {
	cfg := decodeSample(t)
	cfg.Redis.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Redis.Password)
}
