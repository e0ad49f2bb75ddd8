package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

const (
	defaultOrderNotional  = 1_000.0
	defaultMaxSlippageBps = 25.0
)

// Momentum is a rule-based decision engine that follows EMA crossovers: it
// buys symbols whose fast EMA is above the slow EMA and exits (or shorts,
// when allowed) on the opposite cross. It exists both as a usable baseline
// and as the in-repo reference for the DecisionEngine contract.
//
// Recognized params:
//
//   - "order_notional" (float64): quote value per entry order. Default 1000.
//   - "max_slippage_bps" (float64): slippage tolerance on instructions.
//     Default 25.
//   - "allow_short" (bool): open shorts on bearish crosses instead of only
//     flattening longs. Default false.
type Momentum struct {
	orderNotional  float64
	maxSlippageBps float64
	allowShort     bool
	logger         *slog.Logger
}

// NewMomentum creates a momentum engine from per-agent params.
func NewMomentum(params map[string]any, logger *slog.Logger) *Momentum {
	m := &Momentum{
		orderNotional:  defaultOrderNotional,
		maxSlippageBps: defaultMaxSlippageBps,
		logger:         logger,
	}
	if v, ok := paramFloat(params, "order_notional"); ok && v > 0 {
		m.orderNotional = v
	}
	if v, ok := paramFloat(params, "max_slippage_bps"); ok && v >= 0 {
		m.maxSlippageBps = v
	}
	if v, ok := params["allow_short"].(bool); ok {
		m.allowShort = v
	}
	return m
}

// Compose inspects every symbol in the shared feature set and emits at most
// one instruction per symbol. Symbols without EMA indicators are skipped.
func (m *Momentum) Compose(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
	start := time.Now()

	// Deterministic iteration keeps rationale output stable across runs.
	symbols := make([]string, 0, len(cc.Features))
	for sym := range cc.Features {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var instructions []domain.TradeInstruction
	for _, sym := range symbols {
		fv := cc.Features[sym]
		if fv.EMAFast == 0 || fv.EMASlow == 0 || fv.Close <= 0 {
			continue
		}

		pos, held := cc.Portfolio.Positions[sym]
		bullish := fv.EMAFast > fv.EMASlow

		switch {
		case bullish && (!held || pos.Quantity <= 0):
			qty := m.orderNotional / fv.Close
			if held && pos.Quantity < 0 {
				qty += -pos.Quantity // cover the short and go long
			}
			instructions = append(instructions, m.instruction(cc, sym, domain.SideBuy, qty,
				fmt.Sprintf("ema fast %.4f above slow %.4f", fv.EMAFast, fv.EMASlow),
				crossStrength(fv)))

		case !bullish && held && pos.Quantity > 0:
			qty := pos.Quantity
			if m.allowShort {
				qty += m.orderNotional / fv.Close
			}
			instructions = append(instructions, m.instruction(cc, sym, domain.SideSell, qty,
				fmt.Sprintf("ema fast %.4f below slow %.4f", fv.EMAFast, fv.EMASlow),
				crossStrength(fv)))

		case !bullish && !held && m.allowShort:
			qty := m.orderNotional / fv.Close
			instructions = append(instructions, m.instruction(cc, sym, domain.SideSell, qty,
				fmt.Sprintf("short entry, ema fast %.4f below slow %.4f", fv.EMAFast, fv.EMASlow),
				crossStrength(fv)))
		}
	}

	result := domain.ComposeResult{
		AgentID:      cc.AgentID,
		DecisionType: domain.DecisionTypeTrade,
		Instructions: instructions,
		Rationale:    fmt.Sprintf("momentum scan over %d symbols, %d orders", len(symbols), len(instructions)),
		Elapsed:      time.Since(start),
	}
	if len(instructions) == 0 {
		result.DecisionType = domain.DecisionTypeWait
		result.Rationale = "momentum scan found no crossover edges"
	}
	return result, nil
}

func (m *Momentum) instruction(cc domain.ComposeContext, symbol string, side domain.Side, qty float64, rationale string, confidence float64) domain.TradeInstruction {
	return domain.TradeInstruction{
		ID:             uuid.New().String(),
		AgentID:        cc.AgentID,
		Symbol:         symbol,
		Side:           side,
		Quantity:       qty,
		Leverage:       1,
		MaxSlippageBps: m.maxSlippageBps,
		Rationale:      rationale,
		Confidence:     confidence,
		CreatedAt:      cc.Timestamp,
	}
}

// crossStrength maps EMA separation to a 0..1 confidence score.
func crossStrength(fv domain.FeatureVector) float64 {
	if fv.EMASlow == 0 {
		return 0
	}
	sep := (fv.EMAFast - fv.EMASlow) / fv.EMASlow
	if sep < 0 {
		sep = -sep
	}
	conf := 0.5 + sep*50 // 1% separation saturates
	if conf > 1 {
		conf = 1
	}
	return conf
}

func paramFloat(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
