package domain

import "time"

// Side is the direction of a trade instruction. A positive-quantity SELL
// against a flat book opens a short position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

// TradeInstruction is one order emitted by a decision engine. Instructions
// are merged across agents into a single batch per cycle, so AgentID is the
// routing key back to the owning ledger.
type TradeInstruction struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agent_id"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Quantity       float64   `json:"quantity"`
	Leverage       float64   `json:"leverage"`
	MaxSlippageBps float64   `json:"max_slippage_bps"`
	Rationale      string    `json:"rationale,omitempty"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// TxStatus is the terminal state of an executed instruction.
type TxStatus string

const (
	TxStatusFilled   TxStatus = "FILLED"
	TxStatusRejected TxStatus = "REJECTED"
)

// TxResult is the execution report for one instruction. Rejections carry the
// reason in Error; fills carry price, quantity, fee and notional.
type TxResult struct {
	Instruction  TradeInstruction `json:"instruction"`
	Status       TxStatus         `json:"status"`
	FillPrice    float64          `json:"fill_price"`
	FillQuantity float64          `json:"fill_quantity"`
	Fee          float64          `json:"fee"`
	Notional     float64          `json:"notional"`
	Error        string           `json:"error,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Filled reports whether the instruction executed.
func (r TxResult) Filled() bool {
	return r.Status == TxStatusFilled
}
