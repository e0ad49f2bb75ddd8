package competition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/paperarena/internal/coordinator"
	"github.com/alanyoungcy/paperarena/internal/domain"
	"github.com/alanyoungcy/paperarena/internal/gateway"
	"github.com/alanyoungcy/paperarena/internal/ledger"
)

// scriptedProvider walks a fixed price path, one step per cycle.
type scriptedProvider struct {
	symbol string
	path   []float64
	step   int
}

func (p *scriptedProvider) Build(context.Context) ([]domain.FeatureVector, error) {
	price := p.path[len(p.path)-1]
	if p.step < len(p.path) {
		price = p.path[p.step]
		p.step++
	}
	return []domain.FeatureVector{{
		Symbol:    p.symbol,
		Close:     price,
		Timestamp: time.Now().UTC(),
	}}, nil
}

func (p *scriptedProvider) UpdateSymbols([]string) {}

type engineFunc func(ctx context.Context, cc domain.ComposeContext) (domain.ComposeResult, error)

func (f engineFunc) Compose(ctx context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
	return f(ctx, cc)
}

// buyOnce buys on the first cycle and waits afterwards.
func buyOnce(symbol string, qty float64) domain.DecisionEngine {
	fired := false
	return engineFunc(func(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
		if fired {
			return domain.WaitResult(cc.AgentID, "holding"), nil
		}
		fired = true
		return domain.ComposeResult{
			AgentID:      cc.AgentID,
			DecisionType: domain.DecisionTypeTrade,
			Instructions: []domain.TradeInstruction{{
				AgentID: cc.AgentID, Symbol: symbol, Side: domain.SideBuy, Quantity: qty,
			}},
		}, nil
	})
}

func idle() domain.DecisionEngine {
	return engineFunc(func(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
		return domain.WaitResult(cc.AgentID, "idle"), nil
	})
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type recordingAnnouncer struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAnnouncer) Announce(_ context.Context, event, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAnnouncer) has(event string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == event {
			return true
		}
	}
	return false
}

func newTestRuntime(t *testing.T, cfg Config, provider domain.FeaturesProvider, agents []coordinator.Agent, bus domain.SignalBus, notif Announcer) *Runtime {
	t.Helper()
	logger := slog.Default()
	gw := gateway.NewPaperGateway(gateway.Config{}, logger)
	var rt *Runtime
	coord := coordinator.New(coordinator.Config{DecisionTimeout: time.Second}, gw, provider, agents, perfFunc(func(id string) domain.PerformanceDigest {
		if rt == nil {
			return domain.PerformanceDigest{}
		}
		return rt.Digest(id)
	}), logger)
	rt = New(cfg, coord, agents, bus, notif, logger)
	return rt
}

type perfFunc func(agentID string) domain.PerformanceDigest

func (f perfFunc) Digest(agentID string) domain.PerformanceDigest { return f(agentID) }

func agentWith(id string, eng domain.DecisionEngine) coordinator.Agent {
	return coordinator.Agent{
		Spec:   domain.AgentSpec{ID: id, Engine: "test"},
		Engine: eng,
		Ledger: ledger.New(id, 10_000, ledger.Config{}, slog.Default()),
	}
}

func TestRunCycleAccumulatesHistoryAndBoard(t *testing.T) {
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100, 110}}
	agents := []coordinator.Agent{
		agentWith("alpha", buyOnce("XYZ", 10)),
		agentWith("beta", idle()),
	}
	rt := newTestRuntime(t, Config{HistorySize: 10}, provider, agents, nil, nil)

	_, err := rt.RunCycle(context.Background())
	require.NoError(t, err)
	res, err := rt.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rt.CyclesRun())
	assert.Len(t, rt.History(0), 2)
	assert.Len(t, rt.History(1), 1)
	assert.Equal(t, res.CycleID, rt.History(1)[0].CycleID)

	// alpha rode the 100 -> 110 move and leads.
	board := rt.Leaderboard()
	require.Len(t, board, 2)
	assert.Equal(t, "alpha", board[0].AgentID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Greater(t, board[0].PortfolioValue, board[1].PortfolioValue)
}

func TestHistoryRingIsBounded(t *testing.T) {
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100}}
	rt := newTestRuntime(t, Config{HistorySize: 3}, provider,
		[]coordinator.Agent{agentWith("alpha", idle())}, nil, nil)

	for i := 0; i < 5; i++ {
		_, err := rt.RunCycle(context.Background())
		require.NoError(t, err)
	}
	hist := rt.History(0)
	require.Len(t, hist, 3)
	assert.Equal(t, uint64(3), hist[0].Seq)
	assert.Equal(t, uint64(5), hist[2].Seq)
}

func TestStopFailsFast(t *testing.T) {
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100}}
	rt := newTestRuntime(t, Config{}, provider,
		[]coordinator.Agent{agentWith("alpha", idle())}, nil, nil)

	rt.Stop()
	_, err := rt.RunCycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrRuntimeStopped)
	assert.False(t, rt.Status().Running)
}

func TestPortfolioSnapshot(t *testing.T) {
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100}}
	rt := newTestRuntime(t, Config{}, provider,
		[]coordinator.Agent{agentWith("alpha", idle())}, nil, nil)

	view, err := rt.PortfolioSnapshot("alpha")
	require.NoError(t, err)
	assert.InDelta(t, 10_000, view.Cash, 1e-9)

	_, err = rt.PortfolioSnapshot("ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownAgent)
}

func TestDigestTracksWinsAndDrawdown(t *testing.T) {
	// alpha buys at 100; the price falls to 80 (drawdown), recovers to 120,
	// then alpha sells on the last cycle for a realized win.
	sellAt := 4
	cycle := 0
	eng := engineFunc(func(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
		cycle++
		switch cycle {
		case 1:
			return domain.ComposeResult{
				AgentID:      cc.AgentID,
				DecisionType: domain.DecisionTypeTrade,
				Instructions: []domain.TradeInstruction{{
					AgentID: cc.AgentID, Symbol: "XYZ", Side: domain.SideBuy, Quantity: 10,
				}},
			}, nil
		case sellAt:
			return domain.ComposeResult{
				AgentID:      cc.AgentID,
				DecisionType: domain.DecisionTypeTrade,
				Instructions: []domain.TradeInstruction{{
					AgentID: cc.AgentID, Symbol: "XYZ", Side: domain.SideSell, Quantity: 10,
				}},
			}, nil
		default:
			return domain.WaitResult(cc.AgentID, "holding"), nil
		}
	})
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100, 80, 120, 120}}
	rt := newTestRuntime(t, Config{}, provider,
		[]coordinator.Agent{agentWith("alpha", eng)}, nil, nil)

	for i := 0; i < 4; i++ {
		_, err := rt.RunCycle(context.Background())
		require.NoError(t, err)
	}

	d := rt.Digest("alpha")
	assert.Equal(t, 1.0, d.WinRate)
	assert.Greater(t, d.MaxDrawdownPct, 0.0)
	assert.Greater(t, d.ReturnPct, 0.0)
	assert.Equal(t, 2, d.TotalTrades)
	assert.False(t, d.UpdatedAt.IsZero())
}

func TestBusAndNotifierFanOut(t *testing.T) {
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100, 110}}
	bus := newMemBus()
	ann := &recordingAnnouncer{}
	agents := []coordinator.Agent{
		// alpha leads the first cycle on the id tiebreak, then beta's long
		// position rides the move up and takes the lead.
		agentWith("alpha", idle()),
		agentWith("beta", buyOnce("XYZ", 10)),
	}
	rt := newTestRuntime(t, Config{}, provider, agents, bus, ann)

	_, err := rt.RunCycle(context.Background())
	require.NoError(t, err)
	_, err = rt.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, bus.count(domain.ChannelCycles))
	assert.Equal(t, 2, bus.count(domain.ChannelLeaderboard))
	bus.mu.Lock()
	streamLen := len(bus.streamed[domain.StreamCycles])
	bus.mu.Unlock()
	assert.Equal(t, 2, streamLen)

	assert.True(t, ann.has(EventCycleComplete))
	assert.True(t, ann.has(EventLeaderChange))
}

// flakyProvider fails Build on the given one-based call numbers and serves a
// flat price otherwise.
type flakyProvider struct {
	symbol string
	failOn map[int]bool
	calls  int
}

func (p *flakyProvider) Build(context.Context) ([]domain.FeatureVector, error) {
	p.calls++
	if p.failOn[p.calls] {
		return nil, errors.New("feed hiccup")
	}
	return []domain.FeatureVector{{
		Symbol:    p.symbol,
		Close:     100,
		Timestamp: time.Now().UTC(),
	}}, nil
}

func (p *flakyProvider) UpdateSymbols([]string) {}

func TestRunContinuousSurvivesCycleFailures(t *testing.T) {
	provider := &flakyProvider{symbol: "XYZ", failOn: map[int]bool{2: true}}
	rt := newTestRuntime(t, Config{Interval: time.Millisecond, MaxCycles: 3}, provider,
		[]coordinator.Agent{agentWith("alpha", idle())}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.RunContinuous(ctx))

	// The failed cycle is logged and skipped; the loop keeps running until
	// three cycles actually complete.
	assert.Equal(t, 3, rt.CyclesRun())
	assert.Equal(t, 4, provider.calls)
}

func TestRunContinuousHonorsMaxCycles(t *testing.T) {
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100}}
	rt := newTestRuntime(t, Config{Interval: time.Millisecond, MaxCycles: 3}, provider,
		[]coordinator.Agent{agentWith("alpha", idle())}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.RunContinuous(ctx))
	assert.Equal(t, 3, rt.CyclesRun())
}

func TestRunContinuousStopsOnCancel(t *testing.T) {
	provider := &scriptedProvider{symbol: "XYZ", path: []float64{100}}
	rt := newTestRuntime(t, Config{Interval: 10 * time.Millisecond}, provider,
		[]coordinator.Agent{agentWith("alpha", idle())}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := rt.RunContinuous(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, rt.CyclesRun(), 1)
}
