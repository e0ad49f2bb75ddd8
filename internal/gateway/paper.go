// Package gateway simulates order execution for paper-trading competitions.
// Fills are computed against the cycle's feature snapshot with configurable
// slippage and fees; liquidity is assumed unlimited, so any instruction with
// an available reference price fills in full.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// Config holds the simulation parameters for the paper gateway.
type Config struct {
	// DefaultSlippageBps caps the slippage applied to any fill. The effective
	// slippage is min(instruction.MaxSlippageBps, DefaultSlippageBps).
	DefaultSlippageBps float64
	// FeeBps is the taker fee charged on fill notional.
	FeeBps float64
}

// PaperGateway fills instructions against a price snapshot. It holds no
// mutable state between calls and is safe for concurrent use.
type PaperGateway struct {
	cfg    Config
	logger *slog.Logger
}

// NewPaperGateway creates a paper execution gateway.
func NewPaperGateway(cfg Config, logger *slog.Logger) *PaperGateway {
	return &PaperGateway{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "paper_gateway")),
	}
}

// Execute fills every non-HOLD instruction against the snapshot's close
// prices and returns one TxResult per instruction. Rejections (missing price,
// invalid quantity) are returned as REJECTED results, never as errors.
func (g *PaperGateway) Execute(ctx context.Context, instructions []domain.TradeInstruction, snapshot domain.FeatureSet) []domain.TxResult {
	results := make([]domain.TxResult, 0, len(instructions))
	for _, instr := range instructions {
		if instr.Side == domain.SideHold {
			// The coordinator filters these out; skip defensively.
			continue
		}
		results = append(results, g.fill(ctx, instr, snapshot))
	}
	return results
}

func (g *PaperGateway) fill(ctx context.Context, instr domain.TradeInstruction, snapshot domain.FeatureSet) domain.TxResult {
	now := time.Now().UTC()

	if instr.Side != domain.SideBuy && instr.Side != domain.SideSell {
		return g.reject(instr, now, fmt.Sprintf("unsupported side %q", instr.Side))
	}
	if instr.Quantity <= 0 {
		return g.reject(instr, now, fmt.Sprintf("quantity must be positive, got %v", instr.Quantity))
	}

	fv, ok := snapshot[instr.Symbol]
	if !ok || fv.Close <= 0 {
		return g.reject(instr, now, fmt.Sprintf("no price available for %s in snapshot", instr.Symbol))
	}

	slipBps := instr.MaxSlippageBps
	if slipBps > g.cfg.DefaultSlippageBps || slipBps < 0 {
		slipBps = g.cfg.DefaultSlippageBps
	}
	slip := slipBps / 10_000

	fillPrice := fv.Close
	if instr.Side == domain.SideBuy {
		fillPrice *= 1 + slip
	} else {
		fillPrice *= 1 - slip
	}

	notional := instr.Quantity * fillPrice
	fee := notional * g.cfg.FeeBps / 10_000

	g.logger.DebugContext(ctx, "paper fill",
		slog.String("agent", instr.AgentID),
		slog.String("symbol", instr.Symbol),
		slog.String("side", string(instr.Side)),
		slog.Float64("qty", instr.Quantity),
		slog.Float64("fill_price", fillPrice),
		slog.Float64("fee", fee),
	)

	return domain.TxResult{
		Instruction:  instr,
		Status:       domain.TxStatusFilled,
		FillPrice:    fillPrice,
		FillQuantity: instr.Quantity,
		Fee:          fee,
		Notional:     notional,
		Timestamp:    now,
	}
}

func (g *PaperGateway) reject(instr domain.TradeInstruction, ts time.Time, msg string) domain.TxResult {
	g.logger.Warn("instruction rejected",
		slog.String("agent", instr.AgentID),
		slog.String("symbol", instr.Symbol),
		slog.String("reason", msg),
	)
	return domain.TxResult{
		Instruction: instr,
		Status:      domain.TxStatusRejected,
		Error:       msg,
		Timestamp:   ts,
	}
}

// TestConnection always succeeds in paper mode.
func (g *PaperGateway) TestConnection(ctx context.Context) bool {
	return true
}

// Close is a no-op; the paper gateway holds no external resources.
func (g *PaperGateway) Close() error {
	return nil
}
