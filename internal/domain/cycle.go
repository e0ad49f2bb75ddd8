package domain

import "time"

// LeaderboardEntry is one ranked row of the competition standings. Entries
// are serialized to the API and the signal bus, hence the JSON tags.
type LeaderboardEntry struct {
	AgentID        string  `json:"agent_id"`
	PortfolioValue float64 `json:"portfolio_value"`
	TotalPnL       float64 `json:"total_pnl"`
	ReturnPct      float64 `json:"return_pct"`
	TradeCount     int     `json:"trade_count"`
	Rank           int     `json:"rank"`
}

// DecisionCycleResult is the immutable record of one completed decision
// cycle, retained for audit. Seq increases monotonically within a run;
// CycleID is unique per run.
type DecisionCycleResult struct {
	CycleID     string
	Seq         uint64
	Timestamp   time.Time
	Decisions   []ComposeResult
	Results     []TxResult
	Portfolios  map[string]PortfolioView
	Leaderboard []LeaderboardEntry
}

// FilledCount returns the number of filled trades in the cycle.
func (r DecisionCycleResult) FilledCount() int {
	n := 0
	for _, tx := range r.Results {
		if tx.Filled() {
			n++
		}
	}
	return n
}
