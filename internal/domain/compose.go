package domain

import "time"

// DecisionType classifies a ComposeResult.
type DecisionType string

const (
	DecisionTypeTrade DecisionType = "trade"
	// DecisionTypeWait marks an empty result: the engine chose to stay put,
	// timed out, or failed. A degraded agent is indistinguishable from a
	// deliberately idle one downstream.
	DecisionTypeWait DecisionType = "wait"
)

// PerformanceDigest is a compact summary of an agent's trading record,
// handed to its decision engine each cycle.
type PerformanceDigest struct {
	ReturnPct      float64
	WinRate        float64
	TotalTrades    int
	MaxDrawdownPct float64
	UpdatedAt      time.Time
}

// ComposeContext is the immutable per-agent, per-cycle request passed to a
// decision engine. Features is the cycle's shared snapshot; Portfolio and
// Performance are the requesting agent's own state.
type ComposeContext struct {
	AgentID     string
	CycleSeq    uint64
	Timestamp   time.Time
	Features    FeatureSet
	Portfolio   PortfolioView
	Performance PerformanceDigest
}

// ComposeResult is a decision engine's response for one agent and cycle.
type ComposeResult struct {
	AgentID      string
	DecisionType DecisionType
	Instructions []TradeInstruction
	Rationale    string
	Elapsed      time.Duration
}

// WaitResult returns the degraded result substituted when an engine fails or
// exceeds its deadline.
func WaitResult(agentID, rationale string) ComposeResult {
	return ComposeResult{
		AgentID:      agentID,
		DecisionType: DecisionTypeWait,
		Rationale:    rationale,
	}
}
