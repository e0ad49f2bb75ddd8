package domain

// PositionSide tags a position as long or short. It always matches the sign
// of the position quantity.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// PositionSnapshot is the state of one open position. The authoritative copy
// is owned and mutated by the agent's ledger; copies handed out through a
// PortfolioView are detached.
type PositionSnapshot struct {
	Symbol        string       `json:"symbol"`
	Quantity      float64      `json:"quantity"` // signed: positive = long, negative = short
	AvgEntryPrice float64      `json:"avg_entry_price"`
	CurrentPrice  float64      `json:"current_price"`
	UnrealizedPnL float64      `json:"unrealized_pnl"`
	Leverage      float64      `json:"leverage"`
	Side          PositionSide `json:"side"`
	MarginHeld    float64      `json:"margin_held"` // cash withheld at short open, released on cover
}

// MarketValue returns the position's value at its last known price.
func (p PositionSnapshot) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// PortfolioView is an immutable snapshot derived from ledger state. Position
// entries are copies; mutating them has no effect on the ledger.
type PortfolioView struct {
	AgentID            string                      `json:"agent_id"`
	Cash               float64                     `json:"cash"`
	Positions          map[string]PositionSnapshot `json:"positions"`
	TotalValue         float64                     `json:"total_value"`
	TotalUnrealizedPnL float64                     `json:"total_unrealized_pnl"`
	TotalRealizedPnL   float64                     `json:"total_realized_pnl"`
	GrossExposure      float64                     `json:"gross_exposure"`
	NetExposure        float64                     `json:"net_exposure"`
	TradeCount         int                         `json:"trade_count"`
}
