package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/paperarena/internal/cache/redis"
	"github.com/alanyoungcy/paperarena/internal/competition"
	"github.com/alanyoungcy/paperarena/internal/config"
	"github.com/alanyoungcy/paperarena/internal/coordinator"
	"github.com/alanyoungcy/paperarena/internal/domain"
	"github.com/alanyoungcy/paperarena/internal/engine"
	"github.com/alanyoungcy/paperarena/internal/features"
	"github.com/alanyoungcy/paperarena/internal/gateway"
	"github.com/alanyoungcy/paperarena/internal/ledger"
	"github.com/alanyoungcy/paperarena/internal/notify"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Competition core. Runtime is nil in monitor mode.
	Runtime *competition.Runtime
	Agents  []coordinator.Agent

	// Redis-backed fabric. All nil when redis is disabled.
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	Standings   domain.StandingsCache

	// Notifications
	Notifier *notify.Notifier
}

// perfRelay breaks the construction cycle between the coordinator, which
// needs a performance source, and the runtime, which is that source but is
// built on top of the coordinator.
type perfRelay struct {
	src coordinator.PerformanceSource
}

func (p *perfRelay) Digest(agentID string) domain.PerformanceDigest {
	if p.src == nil {
		return domain.PerformanceDigest{}
	}
	return p.src.Digest(agentID)
}

// needsRuntime returns true for modes that run their own competition.
// Monitor mode only observes one through the signal bus.
func needsRuntime(mode string) bool {
	return mode != "monitor"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Standings = redis.NewStandingsCache(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Competition runtime ---
	if needsRuntime(mode) {
		agents, err := buildRoster(cfg, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: roster: %w", err)
		}
		deps.Agents = agents

		provider := features.NewSynthetic(features.SyntheticConfig{
			Symbols:    cfg.Features.Symbols,
			StartPrice: cfg.Features.StartPrice,
			Volatility: cfg.Features.Volatility,
			Drift:      cfg.Features.Drift,
			SpreadBps:  cfg.Features.SpreadBps,
			Seed:       cfg.Features.Seed,
		})

		gw := gateway.NewPaperGateway(gateway.Config{
			DefaultSlippageBps: cfg.Gateway.DefaultSlippageBps,
			FeeBps:             cfg.Gateway.FeeBps,
		}, logger)
		closers = append(closers, func() { _ = gw.Close() })

		relay := &perfRelay{}
		coord := coordinator.New(coordinator.Config{
			DecisionTimeout: cfg.Competition.DecisionTimeout.Duration,
		}, gw, provider, agents, relay, logger)

		rt := competition.New(competition.Config{
			Interval:    cfg.Competition.CycleInterval.Duration,
			MaxCycles:   cfg.Competition.MaxCycles,
			HistorySize: cfg.Competition.HistorySize,
		}, coord, agents, deps.SignalBus, deps.Notifier, logger)
		relay.src = rt
		if deps.Standings != nil {
			rt.SetStandingsCache(deps.Standings)
		}
		deps.Runtime = rt
	}

	return deps, cleanup, nil
}

// buildRoster constructs one agent per configured competitor: its engine
// from the registry and a fresh ledger at the starting capital.
func buildRoster(cfg *config.Config, logger *slog.Logger) ([]coordinator.Agent, error) {
	registry := engine.NewRegistry()

	agents := make([]coordinator.Agent, 0, len(cfg.Competition.Agents))
	for _, ac := range cfg.Competition.Agents {
		spec := domain.AgentSpec{
			ID:     ac.ID,
			Engine: ac.Engine,
			Params: ac.Params,
		}
		eng, err := registry.Build(spec, logger)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", ac.ID, err)
		}
		agents = append(agents, coordinator.Agent{
			Spec:   spec,
			Engine: eng,
			Ledger: ledger.New(ac.ID, cfg.Competition.InitialCapital, ledger.Config{
				ShortMarginFraction: cfg.Ledger.ShortMarginFraction,
			}, logger),
		})
	}
	return agents, nil
}

// startedAt is captured once so hub status uptime is process-wide.
var startedAt = time.Now().UTC()
