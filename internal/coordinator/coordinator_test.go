package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/paperarena/internal/domain"
	"github.com/alanyoungcy/paperarena/internal/gateway"
	"github.com/alanyoungcy/paperarena/internal/ledger"
)

// stubProvider returns a fixed feature set, or fails.
type stubProvider struct {
	vectors []domain.FeatureVector
	err     error
	calls   int
}

func (p *stubProvider) Build(ctx context.Context) ([]domain.FeatureVector, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.vectors, nil
}

func (p *stubProvider) UpdateSymbols([]string) {}

// engineFunc adapts a function to domain.DecisionEngine.
type engineFunc func(ctx context.Context, cc domain.ComposeContext) (domain.ComposeResult, error)

func (f engineFunc) Compose(ctx context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
	return f(ctx, cc)
}

func buyEngine(symbol string, qty float64) engineFunc {
	return func(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
		return domain.ComposeResult{
			AgentID:      cc.AgentID,
			DecisionType: domain.DecisionTypeTrade,
			Instructions: []domain.TradeInstruction{{
				AgentID:  cc.AgentID,
				Symbol:   symbol,
				Side:     domain.SideBuy,
				Quantity: qty,
			}},
		}, nil
	}
}

func newAgent(id string, eng domain.DecisionEngine, capital float64) Agent {
	return Agent{
		Spec:   domain.AgentSpec{ID: id, Engine: "test"},
		Engine: eng,
		Ledger: ledger.New(id, capital, ledger.Config{}, slog.Default()),
	}
}

func testCoordinator(t *testing.T, provider domain.FeaturesProvider, agents []Agent, timeout time.Duration) *Coordinator {
	t.Helper()
	gw := gateway.NewPaperGateway(gateway.Config{}, slog.Default())
	return New(Config{DecisionTimeout: timeout}, gw, provider, agents, nil, slog.Default())
}

func priceVector(symbol string, close float64) domain.FeatureVector {
	return domain.FeatureVector{Symbol: symbol, Close: close, Timestamp: time.Now().UTC()}
}

func TestRunCycleFairness(t *testing.T) {
	// Agents A and B both buy the same symbol in the same cycle; both fills
	// must derive from the identical snapshot price.
	provider := &stubProvider{vectors: []domain.FeatureVector{priceVector("XYZ", 150)}}
	agents := []Agent{
		newAgent("A", buyEngine("XYZ", 1), 10_000),
		newAgent("B", buyEngine("XYZ", 2), 10_000),
	}
	c := testCoordinator(t, provider, agents, time.Second)

	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, domain.TxStatusFilled, res.Results[0].Status)
	assert.Equal(t, domain.TxStatusFilled, res.Results[1].Status)
	assert.InDelta(t, res.Results[0].FillPrice, res.Results[1].FillPrice, 1e-12)
	assert.Equal(t, 2, res.FilledCount())
}

func TestRunCycleRoutesFillsToOwningLedger(t *testing.T) {
	provider := &stubProvider{vectors: []domain.FeatureVector{priceVector("XYZ", 100)}}
	agents := []Agent{
		newAgent("A", buyEngine("XYZ", 10), 10_000),
		newAgent("B", engineFunc(func(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
			return domain.WaitResult(cc.AgentID, "sitting out"), nil
		}), 10_000),
	}
	c := testCoordinator(t, provider, agents, time.Second)

	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	viewA := res.Portfolios["A"]
	viewB := res.Portfolios["B"]
	assert.InDelta(t, 9_000, viewA.Cash, 1e-9)
	assert.Contains(t, viewA.Positions, "XYZ")
	assert.InDelta(t, 10_000, viewB.Cash, 1e-9)
	assert.Empty(t, viewB.Positions)
}

func TestFeatureFetchFailureAbortsBeforeLedgerMutation(t *testing.T) {
	provider := &stubProvider{err: errors.New("exchange unreachable")}
	agent := newAgent("A", buyEngine("XYZ", 1), 10_000)
	c := testCoordinator(t, provider, []Agent{agent}, time.Second)

	_, err := c.RunCycle(context.Background())
	require.ErrorIs(t, err, domain.ErrFeatureFetch)

	view := agent.Ledger.View()
	assert.InDelta(t, 10_000, view.Cash, 1e-9)
	assert.Equal(t, 0, view.TradeCount)
}

func TestSlowEngineDegradesToWaitWithoutBlockingOthers(t *testing.T) {
	provider := &stubProvider{vectors: []domain.FeatureVector{priceVector("XYZ", 100)}}
	stalled := engineFunc(func(ctx context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
		// Ignores its context entirely.
		time.Sleep(2 * time.Second)
		return domain.ComposeResult{AgentID: cc.AgentID}, nil
	})
	agents := []Agent{
		newAgent("A", buyEngine("XYZ", 1), 10_000),
		newAgent("B", buyEngine("XYZ", 1), 10_000),
		newAgent("C", stalled, 10_000),
	}
	c := testCoordinator(t, provider, agents, 50*time.Millisecond)

	start := time.Now()
	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "stalled engine must not hold up the cycle")

	byAgent := map[string]domain.ComposeResult{}
	for _, dec := range res.Decisions {
		byAgent[dec.AgentID] = dec
	}
	assert.Equal(t, domain.DecisionTypeWait, byAgent["C"].DecisionType)
	assert.Empty(t, byAgent["C"].Instructions)

	// A and B executed and are ranked; C holds initial capital with no trades.
	assert.Equal(t, 2, res.FilledCount())
	require.Len(t, res.Leaderboard, 3)
	assert.Equal(t, 0, res.Portfolios["C"].TradeCount)
}

func TestEngineErrorIsIsolated(t *testing.T) {
	provider := &stubProvider{vectors: []domain.FeatureVector{priceVector("XYZ", 100)}}
	broken := engineFunc(func(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
		return domain.ComposeResult{}, errors.New("model exploded")
	})
	agents := []Agent{
		newAgent("A", broken, 10_000),
		newAgent("B", buyEngine("XYZ", 1), 10_000),
	}
	c := testCoordinator(t, provider, agents, time.Second)

	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	byAgent := map[string]domain.ComposeResult{}
	for _, dec := range res.Decisions {
		byAgent[dec.AgentID] = dec
	}
	assert.Equal(t, domain.DecisionTypeWait, byAgent["A"].DecisionType)
	assert.Equal(t, 1, res.FilledCount())
}

func TestHoldInstructionsNeverReachGateway(t *testing.T) {
	provider := &stubProvider{vectors: []domain.FeatureVector{priceVector("XYZ", 100)}}
	holder := engineFunc(func(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
		return domain.ComposeResult{
			AgentID:      cc.AgentID,
			DecisionType: domain.DecisionTypeTrade,
			Instructions: []domain.TradeInstruction{{
				AgentID: cc.AgentID, Symbol: "XYZ", Side: domain.SideHold,
			}},
		}, nil
	})
	c := testCoordinator(t, provider, []Agent{newAgent("A", holder, 10_000)}, time.Second)

	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestCycleSequenceIsMonotonicWithUniqueIDs(t *testing.T) {
	provider := &stubProvider{vectors: []domain.FeatureVector{priceVector("XYZ", 100)}}
	c := testCoordinator(t, provider, []Agent{newAgent("A", buyEngine("XYZ", 1), 100_000)}, time.Second)

	ids := map[string]bool{}
	for want := uint64(1); want <= 3; want++ {
		res, err := c.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, res.Seq)
		assert.False(t, ids[res.CycleID], "cycle ids must be unique per run")
		ids[res.CycleID] = true
	}
}

func TestRankingOrdersByTotalValue(t *testing.T) {
	views := map[string]domain.PortfolioView{
		"A": {TotalValue: 10_500, TotalRealizedPnL: 500, TradeCount: 2},
		"B": {TotalValue: 9_800, TotalUnrealizedPnL: -200, TradeCount: 5},
		"C": {TotalValue: 10_500, TradeCount: 0},
	}
	initial := map[string]float64{"A": 10_000, "B": 10_000, "C": 10_000}

	board := BuildLeaderboard(views, initial)
	require.Len(t, board, 3)
	// A and C tie on value; the tie breaks on agent id.
	assert.Equal(t, "A", board[0].AgentID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "C", board[1].AgentID)
	assert.Equal(t, 2, board[1].Rank)
	assert.Equal(t, "B", board[2].AgentID)
	assert.Equal(t, 3, board[2].Rank)
	assert.InDelta(t, 5.0, board[0].ReturnPct, 1e-9)
	assert.InDelta(t, -2.0, board[2].ReturnPct, 1e-9)
}
