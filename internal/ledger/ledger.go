// Package ledger implements per-agent cash and position accounting for the
// paper-trading competition. Each ledger is exclusively owned by one agent
// and mutated only through ApplyTrade and MarkToMarket; a mutex serializes
// those mutations so exactly one executes at a time.
package ledger

import (
	"log/slog"
	"math"
	"sync"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// dustThreshold is the absolute quantity below which a position is removed.
const dustThreshold = 1e-9

// Config holds ledger accounting parameters.
type Config struct {
	// ShortMarginFraction is the fraction of short notional withheld from
	// cash when a short is opened. Released pro rata as the short is covered.
	ShortMarginFraction float64
}

// Ledger tracks one agent's cash, open positions, and realized P&L.
type Ledger struct {
	agentID        string
	cfg            Config
	logger         *slog.Logger
	mu             sync.Mutex
	cash           float64
	initialCapital float64
	positions      map[string]*domain.PositionSnapshot
	realizedPnL    float64
	tradeCount     int
}

// New creates a ledger funded with initialCapital.
func New(agentID string, initialCapital float64, cfg Config, logger *slog.Logger) *Ledger {
	if cfg.ShortMarginFraction <= 0 {
		cfg.ShortMarginFraction = 0.5
	}
	return &Ledger{
		agentID:        agentID,
		cfg:            cfg,
		logger:         logger.With(slog.String("component", "ledger"), slog.String("agent", agentID)),
		cash:           initialCapital,
		initialCapital: initialCapital,
		positions:      make(map[string]*domain.PositionSnapshot),
	}
}

// AgentID returns the owning agent's id.
func (l *Ledger) AgentID() string { return l.agentID }

// InitialCapital returns the capital the ledger was created or last reset with.
func (l *Ledger) InitialCapital() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialCapital
}

// ApplyTrade applies a filled execution result to the ledger. Results with
// any status other than FILLED are ignored. Realized P&L changes only here,
// and only on the closed portion of a position.
func (l *Ledger) ApplyTrade(tx domain.TxResult) error {
	if !tx.Filled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	qty := tx.FillQuantity
	price := tx.FillPrice
	symbol := tx.Instruction.Symbol

	switch tx.Instruction.Side {
	case domain.SideBuy:
		l.cash -= qty*price + tx.Fee
		l.applyBuy(symbol, qty, price, tx.Instruction.Leverage)
	case domain.SideSell:
		l.cash += qty*price - tx.Fee
		l.applySell(symbol, qty, price, tx.Instruction.Leverage)
	default:
		return domain.ErrInvalidInstruction
	}

	l.tradeCount++

	l.logger.Debug("trade applied",
		slog.String("symbol", symbol),
		slog.String("side", string(tx.Instruction.Side)),
		slog.Float64("qty", qty),
		slog.Float64("price", price),
		slog.Float64("cash", l.cash),
		slog.Float64("realized_pnl", l.realizedPnL),
	)
	return nil
}

// applyBuy covers any existing short first, then opens or grows a long with
// the remainder.
func (l *Ledger) applyBuy(symbol string, qty, price, leverage float64) {
	remainder := qty

	if pos, ok := l.positions[symbol]; ok && pos.Quantity < 0 {
		shortQty := -pos.Quantity
		covered := math.Min(remainder, shortQty)

		l.realizedPnL += (pos.AvgEntryPrice - price) * covered

		// Release withheld margin for the covered portion.
		release := pos.MarginHeld * covered / shortQty
		l.cash += release
		pos.MarginHeld -= release

		pos.Quantity += covered
		remainder -= covered
		l.refresh(pos, price)
		l.sweepDust(symbol)
	}

	if remainder > 0 {
		l.growLong(symbol, remainder, price, leverage)
	}
}

// applySell closes any existing long first (realizing P&L on the closed
// portion), then opens or grows a short with the remainder, withholding
// margin from cash immediately.
func (l *Ledger) applySell(symbol string, qty, price, leverage float64) {
	remainder := qty

	if pos, ok := l.positions[symbol]; ok && pos.Quantity > 0 {
		closed := math.Min(remainder, pos.Quantity)
		l.realizedPnL += (price - pos.AvgEntryPrice) * closed
		pos.Quantity -= closed
		remainder -= closed
		l.refresh(pos, price)
		l.sweepDust(symbol)
	}

	if remainder > 0 {
		l.growShort(symbol, remainder, price, leverage)
	}
}

func (l *Ledger) growLong(symbol string, qty, price, leverage float64) {
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &domain.PositionSnapshot{Symbol: symbol}
		l.positions[symbol] = pos
	}
	newQty := pos.Quantity + qty
	pos.AvgEntryPrice = (pos.Quantity*pos.AvgEntryPrice + qty*price) / newQty
	pos.Quantity = newQty
	pos.Leverage = leverage
	l.refresh(pos, price)
}

func (l *Ledger) growShort(symbol string, qty, price, leverage float64) {
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &domain.PositionSnapshot{Symbol: symbol}
		l.positions[symbol] = pos
	}
	oldAbs := -pos.Quantity
	newAbs := oldAbs + qty
	pos.AvgEntryPrice = (oldAbs*pos.AvgEntryPrice + qty*price) / newAbs
	pos.Quantity = -newAbs
	pos.Leverage = leverage

	margin := l.cfg.ShortMarginFraction * qty * price
	l.cash -= margin
	pos.MarginHeld += margin
	l.refresh(pos, price)
}

// refresh updates the position's current price, side tag, and unrealized P&L
// after a mutation.
func (l *Ledger) refresh(pos *domain.PositionSnapshot, price float64) {
	pos.CurrentPrice = price
	if pos.Quantity >= 0 {
		pos.Side = domain.PositionSideLong
		pos.UnrealizedPnL = (price - pos.AvgEntryPrice) * pos.Quantity
	} else {
		pos.Side = domain.PositionSideShort
		pos.UnrealizedPnL = (pos.AvgEntryPrice - price) * -pos.Quantity
	}
}

// sweepDust removes the symbol's position when its quantity has collapsed to
// zero or near-zero. Any residual short margin is returned to cash so dust
// cannot strand funds.
func (l *Ledger) sweepDust(symbol string) {
	pos, ok := l.positions[symbol]
	if !ok {
		return
	}
	if math.Abs(pos.Quantity) < dustThreshold {
		l.cash += pos.MarginHeld
		delete(l.positions, symbol)
	}
}

// MarkToMarket updates current prices and recomputes unrealized P&L for every
// position with a known price. It never changes cash or realized P&L, and
// repeated calls with an unchanged price map are idempotent.
func (l *Ledger) MarkToMarket(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for symbol, pos := range l.positions {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			continue
		}
		l.refresh(pos, price)
	}
}

// View derives an immutable portfolio snapshot from the current ledger state.
// Total value follows the short-margin convention: long positions contribute
// market value, shorts contribute only unrealized P&L because their margin
// was already withheld from cash at open.
func (l *Ledger) View() domain.PortfolioView {
	l.mu.Lock()
	defer l.mu.Unlock()

	view := domain.PortfolioView{
		AgentID:          l.agentID,
		Cash:             l.cash,
		Positions:        make(map[string]domain.PositionSnapshot, len(l.positions)),
		TotalValue:       l.cash,
		TotalRealizedPnL: l.realizedPnL,
		TradeCount:       l.tradeCount,
	}

	for symbol, pos := range l.positions {
		view.Positions[symbol] = *pos
		view.TotalUnrealizedPnL += pos.UnrealizedPnL
		view.GrossExposure += math.Abs(pos.Quantity) * pos.CurrentPrice
		view.NetExposure += pos.Quantity * pos.CurrentPrice

		if pos.Quantity > 0 {
			view.TotalValue += pos.Quantity * pos.CurrentPrice
		} else {
			view.TotalValue += pos.UnrealizedPnL
		}
	}
	return view
}

// Reset clears all state and refunds the ledger with initialCapital.
func (l *Ledger) Reset(initialCapital float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = initialCapital
	l.initialCapital = initialCapital
	l.positions = make(map[string]*domain.PositionSnapshot)
	l.realizedPnL = 0
	l.tradeCount = 0
}
