package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/paperarena/internal/domain"
	"github.com/alanyoungcy/paperarena/internal/server"
	"github.com/alanyoungcy/paperarena/internal/server/handler"
	"github.com/alanyoungcy/paperarena/internal/server/ws"
)

// CompeteMode runs the competition loop at the configured cadence and, when
// enabled, serves the HTTP and WebSocket API alongside it.
func (a *App) CompeteMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting compete mode",
		slog.Int("agents", len(deps.Agents)),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Runtime.RunContinuous(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// OnceMode runs exactly one decision cycle and logs the resulting standings.
// Useful for smoke-testing a roster and engine parameters.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	res, err := deps.Runtime.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("once mode: %w", err)
	}

	a.logger.InfoContext(ctx, "cycle finished",
		slog.String("cycle_id", res.CycleID),
		slog.Int("fills", res.FilledCount()),
	)
	for _, entry := range res.Leaderboard {
		a.logger.InfoContext(ctx, "standing",
			slog.Int("rank", entry.Rank),
			slog.String("agent", entry.AgentID),
			slog.Float64("value", entry.PortfolioValue),
			slog.Float64("return_pct", entry.ReturnPct),
			slog.Int("trades", entry.TradeCount),
		)
	}
	return nil
}

// MonitorMode observes a competition running elsewhere through the signal
// bus: it logs live cycle and leaderboard events and the last published
// standings. It runs no cycles of its own.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	if deps.Standings != nil {
		if board, ts, err := deps.Standings.Leaderboard(ctx); err == nil {
			a.logger.InfoContext(ctx, "last published standings",
				slog.Int("entries", len(board)),
				slog.Time("as_of", ts),
			)
		} else if !errors.Is(err, domain.ErrNotFound) {
			a.logger.WarnContext(ctx, "read standings cache failed",
				slog.String("error", err.Error()),
			)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, channel := range []string{domain.ChannelCycles, domain.ChannelLeaderboard, domain.ChannelStatus} {
		channel := channel
		g.Go(func() error {
			ch, err := deps.SignalBus.Subscribe(ctx, channel)
			if err != nil {
				return fmt.Errorf("monitor mode: subscribe %s: %w", channel, err)
			}
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case payload, ok := <-ch:
					if !ok {
						return nil
					}
					a.logger.InfoContext(ctx, "bus event",
						slog.String("channel", channel),
						slog.Int("bytes", len(payload)),
						slog.String("payload", string(payload)),
					)
				}
			}
		})
	}

	return g.Wait()
}

// startHTTPServer wires the handler set to the runtime and launches the API
// server plus, when the bus is available, the WebSocket hub.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	rt := deps.Runtime

	cycles := handler.NewCycleHandler(rt, a.logger).WithTriggerChannel(rt.Trigger())

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Status:      handler.NewStatusHandler(rt, a.cfg.Mode),
		Leaderboard: handler.NewLeaderboardHandler(rt),
		Agents:      handler.NewAgentHandler(rt, a.logger),
		Cycles:      cycles,
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: startedAt,
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
