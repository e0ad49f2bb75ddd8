// Package config defines the top-level configuration for the paper trading
// arena and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARENA_* environment variables.
type Config struct {
	Competition CompetitionConfig `toml:"competition"`
	Gateway     GatewayConfig     `toml:"gateway"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Features    FeaturesConfig    `toml:"features"`
	Redis       RedisConfig       `toml:"redis"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// duration wraps time.Duration so TOML values can be written as "30s" or "5m".
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

// AgentConfig declares one competitor: its id, the decision engine that
// drives it, and engine-specific parameters.
type AgentConfig struct {
	ID     string         `toml:"id"`
	Engine string         `toml:"engine"`
	Params map[string]any `toml:"params"`
}

// CompetitionConfig holds the tournament roster and cadence.
type CompetitionConfig struct {
	InitialCapital  float64       `toml:"initial_capital"`
	CycleInterval   duration      `toml:"cycle_interval"`
	DecisionTimeout duration      `toml:"decision_timeout"`
	MaxCycles       int           `toml:"max_cycles"`
	HistorySize     int           `toml:"history_size"`
	Agents          []AgentConfig `toml:"agents"`
}

// GatewayConfig holds paper execution parameters.
type GatewayConfig struct {
	DefaultSlippageBps float64 `toml:"default_slippage_bps"`
	FeeBps             float64 `toml:"fee_bps"`
}

// LedgerConfig holds portfolio accounting parameters.
type LedgerConfig struct {
	ShortMarginFraction float64 `toml:"short_margin_fraction"`
}

// FeaturesConfig holds the synthetic market data generator parameters.
type FeaturesConfig struct {
	Symbols    []string `toml:"symbols"`
	StartPrice float64  `toml:"start_price"`
	Volatility float64  `toml:"volatility"`
	Drift      float64  `toml:"drift"`
	SpreadBps  float64  `toml:"spread_bps"`
	Seed       int64    `toml:"seed"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; with
// enabled = false the runtime skips bus publication and the WebSocket hub.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Competition: CompetitionConfig{
			InitialCapital:  10_000,
			CycleInterval:   duration{time.Minute},
			DecisionTimeout: duration{30 * time.Second},
			HistorySize:     100,
		},
		Gateway: GatewayConfig{
			DefaultSlippageBps: 5,
			FeeBps:             10,
		},
		Ledger: LedgerConfig{
			ShortMarginFraction: 0.5,
		},
		Features: FeaturesConfig{
			Symbols:    []string{"BTC", "ETH", "SOL"},
			StartPrice: 100,
			Volatility: 0.01,
			SpreadBps:  5,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8080,
			RateWindow: duration{time.Second},
		},
		Mode:     "compete",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"compete": true,
	"once":    true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode comparisons below must see the same casing App.Run dispatches on.
	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: compete, once, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Competition — a roster is required outside monitor mode.
	if mode != "monitor" {
		if len(c.Competition.Agents) == 0 {
			errs = append(errs, "competition: at least one agent must be configured")
		}
		seen := map[string]bool{}
		for i, ag := range c.Competition.Agents {
			if strings.TrimSpace(ag.ID) == "" {
				errs = append(errs, fmt.Sprintf("competition: agents[%d] is missing an id", i))
				continue
			}
			if seen[ag.ID] {
				errs = append(errs, fmt.Sprintf("competition: duplicate agent id %q", ag.ID))
			}
			seen[ag.ID] = true
			if strings.TrimSpace(ag.Engine) == "" {
				errs = append(errs, fmt.Sprintf("competition: agent %q is missing an engine", ag.ID))
			}
		}
		if c.Competition.InitialCapital <= 0 {
			errs = append(errs, "competition: initial_capital must be > 0")
		}
		if c.Competition.CycleInterval.Duration <= 0 {
			errs = append(errs, "competition: cycle_interval must be > 0")
		}
		if c.Competition.DecisionTimeout.Duration <= 0 {
			errs = append(errs, "competition: decision_timeout must be > 0")
		}
		if c.Competition.MaxCycles < 0 {
			errs = append(errs, "competition: max_cycles must be >= 0")
		}

		// Features drive every non-monitor mode.
		if len(c.Features.Symbols) == 0 {
			errs = append(errs, "features: at least one symbol must be configured")
		}
		if c.Features.StartPrice <= 0 {
			errs = append(errs, "features: start_price must be > 0")
		}
		if c.Features.Volatility <= 0 {
			errs = append(errs, "features: volatility must be > 0")
		}
	}

	// Gateway
	if c.Gateway.DefaultSlippageBps < 0 {
		errs = append(errs, "gateway: default_slippage_bps must be >= 0")
	}
	if c.Gateway.FeeBps < 0 {
		errs = append(errs, "gateway: fee_bps must be >= 0")
	}

	// Ledger
	if c.Ledger.ShortMarginFraction <= 0 || c.Ledger.ShortMarginFraction > 1 {
		errs = append(errs, fmt.Sprintf("ledger: short_margin_fraction must be in (0, 1], got %v", c.Ledger.ShortMarginFraction))
	}

	// Redis — monitor mode observes a running competition through the bus.
	if mode == "monitor" && !c.Redis.Enabled {
		errs = append(errs, "redis: must be enabled for monitor mode")
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
