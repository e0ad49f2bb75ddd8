// Package coordinator runs one full decision cycle of the competition:
// build features, collect per-agent decisions, execute the merged batch,
// apply fills to the owning ledgers, mark every ledger to market, and rank.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/paperarena/internal/domain"
	"github.com/alanyoungcy/paperarena/internal/ledger"
)

// ExecutionGateway is the contract through which the coordinator submits the
// cycle's merged instruction batch. Implemented by the paper gateway.
type ExecutionGateway interface {
	Execute(ctx context.Context, instructions []domain.TradeInstruction, snapshot domain.FeatureSet) []domain.TxResult
}

// PerformanceSource supplies per-agent performance digests for compose
// contexts. A nil source yields zero digests.
type PerformanceSource interface {
	Digest(agentID string) domain.PerformanceDigest
}

// Agent bundles one competitor's identity, decision engine, and ledger.
type Agent struct {
	Spec   domain.AgentSpec
	Engine domain.DecisionEngine
	Ledger *ledger.Ledger
}

// Config holds coordinator tuning parameters.
type Config struct {
	// DecisionTimeout bounds each engine's Compose call. On expiry the agent
	// degrades to an empty wait decision and the cycle proceeds.
	DecisionTimeout time.Duration
}

// Coordinator drives the fixed per-cycle pipeline. Cycles are sequential;
// only the decision-collection phase fans out, bounded by the roster size.
type Coordinator struct {
	cfg      Config
	gateway  ExecutionGateway
	provider domain.FeaturesProvider
	agents   []Agent
	perf     PerformanceSource
	logger   *slog.Logger
	seq      atomic.Uint64
}

// New creates a coordinator over the given roster. perf may be nil.
func New(cfg Config, gw ExecutionGateway, provider domain.FeaturesProvider, agents []Agent, perf PerformanceSource, logger *slog.Logger) *Coordinator {
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = 30 * time.Second
	}
	return &Coordinator{
		cfg:      cfg,
		gateway:  gw,
		provider: provider,
		agents:   agents,
		perf:     perf,
		logger:   logger.With(slog.String("component", "coordinator")),
	}
}

// RunCycle executes one full cycle and returns its immutable result. A
// feature-fetch failure aborts before any ledger is touched; every later
// failure is isolated to its agent or trade.
func (c *Coordinator) RunCycle(ctx context.Context) (domain.DecisionCycleResult, error) {
	seq := c.seq.Add(1)
	cycleID := uuid.New().String()
	started := time.Now().UTC()

	log := c.logger.With(slog.String("cycle_id", cycleID), slog.Uint64("seq", seq))

	// BUILD_FEATURES: one shared snapshot so every agent sees identical prices.
	vectors, err := c.provider.Build(ctx)
	if err != nil {
		return domain.DecisionCycleResult{}, fmt.Errorf("cycle %d: %w: %v", seq, domain.ErrFeatureFetch, err)
	}
	snapshot := make(domain.FeatureSet, len(vectors))
	for _, fv := range vectors {
		snapshot[fv.Symbol] = fv
	}
	log.Debug("features built", slog.Int("symbols", len(snapshot)))

	// COLLECT_DECISIONS: independent per-agent calls, failures degrade to wait.
	decisions := c.collectDecisions(ctx, seq, started, snapshot, log)

	// EXECUTE: merge all instructions into one batch against the snapshot.
	var batch []domain.TradeInstruction
	for _, dec := range decisions {
		for _, instr := range dec.Instructions {
			if instr.Side == domain.SideHold {
				continue
			}
			batch = append(batch, instr)
		}
	}
	results := c.gateway.Execute(ctx, batch, snapshot)

	// APPLY: route each fill to its owning agent's ledger.
	ledgers := make(map[string]*ledger.Ledger, len(c.agents))
	for _, ag := range c.agents {
		ledgers[ag.Spec.ID] = ag.Ledger
	}
	for _, tx := range results {
		led, ok := ledgers[tx.Instruction.AgentID]
		if !ok {
			log.Error("fill for unknown agent dropped",
				slog.String("agent", tx.Instruction.AgentID),
				slog.String("symbol", tx.Instruction.Symbol),
			)
			continue
		}
		if err := led.ApplyTrade(tx); err != nil {
			// One bad trade must not block the rest of the batch.
			log.Error("apply trade failed",
				slog.String("agent", tx.Instruction.AgentID),
				slog.String("symbol", tx.Instruction.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	// MARK: the same close prices the cycle was decided on.
	closes := snapshot.ClosePrices()
	for _, ag := range c.agents {
		ag.Ledger.MarkToMarket(closes)
	}

	// RANK.
	views := make(map[string]domain.PortfolioView, len(c.agents))
	initial := make(map[string]float64, len(c.agents))
	for _, ag := range c.agents {
		views[ag.Spec.ID] = ag.Ledger.View()
		initial[ag.Spec.ID] = ag.Ledger.InitialCapital()
	}
	board := BuildLeaderboard(views, initial)

	result := domain.DecisionCycleResult{
		CycleID:     cycleID,
		Seq:         seq,
		Timestamp:   started,
		Decisions:   decisions,
		Results:     results,
		Portfolios:  views,
		Leaderboard: board,
	}

	log.Info("cycle complete",
		slog.Int("instructions", len(batch)),
		slog.Int("fills", result.FilledCount()),
		slog.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// collectDecisions fans out one Compose call per agent. Each call runs on its
// own goroutine with a bounded wait, so a stalled engine that ignores its
// context cannot hold up the cycle.
func (c *Coordinator) collectDecisions(ctx context.Context, seq uint64, ts time.Time, snapshot domain.FeatureSet, log *slog.Logger) []domain.ComposeResult {
	decisions := make([]domain.ComposeResult, len(c.agents))

	g, gctx := errgroup.WithContext(ctx)
	for i, ag := range c.agents {
		i, ag := i, ag
		g.Go(func() error {
			cc := domain.ComposeContext{
				AgentID:   ag.Spec.ID,
				CycleSeq:  seq,
				Timestamp: ts,
				Features:  snapshot,
				Portfolio: ag.Ledger.View(),
			}
			if c.perf != nil {
				cc.Performance = c.perf.Digest(ag.Spec.ID)
			}
			decisions[i] = c.composeBounded(gctx, ag, cc, log)
			// Per-agent failures never cross agent boundaries.
			return nil
		})
	}
	_ = g.Wait()
	return decisions
}

type composeOutcome struct {
	res domain.ComposeResult
	err error
}

func (c *Coordinator) composeBounded(ctx context.Context, ag Agent, cc domain.ComposeContext, log *slog.Logger) domain.ComposeResult {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.DecisionTimeout)
	defer cancel()

	ch := make(chan composeOutcome, 1)
	go func() {
		res, err := ag.Engine.Compose(callCtx, cc)
		ch <- composeOutcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			log.Warn("decision engine failed, degrading to wait",
				slog.String("agent", ag.Spec.ID),
				slog.String("error", out.err.Error()),
			)
			return domain.WaitResult(ag.Spec.ID, "engine error: "+out.err.Error())
		}
		out.res.AgentID = ag.Spec.ID
		return out.res
	case <-callCtx.Done():
		log.Warn("decision engine degraded to wait",
			slog.String("agent", ag.Spec.ID),
			slog.String("error", domain.ErrDecisionTimeout.Error()),
			slog.Duration("timeout", c.cfg.DecisionTimeout),
		)
		return domain.WaitResult(ag.Spec.ID, domain.ErrDecisionTimeout.Error())
	}
}
