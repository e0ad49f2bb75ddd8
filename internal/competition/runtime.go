// Package competition owns the long-running tournament: it drives the
// coordinator on a fixed cadence, keeps per-agent performance digests and a
// bounded cycle history, and fans results out to the signal bus and
// notification channels.
package competition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/paperarena/internal/coordinator"
	"github.com/alanyoungcy/paperarena/internal/domain"
)

// Announcer delivers human-readable competition events to external channels.
// Implemented by notify.Notifier.
type Announcer interface {
	Announce(ctx context.Context, event, message string)
}

// Notification event names recognized by the runtime.
const (
	EventCycleComplete = "cycle_complete"
	EventLeaderChange  = "leader_change"
	EventRuntimeStatus = "runtime_status"
)

// Config holds runtime tuning parameters.
type Config struct {
	// Interval between cycle starts in continuous mode.
	Interval time.Duration
	// MaxCycles stops the run after N cycles; zero means unbounded.
	MaxCycles int
	// HistorySize bounds the in-memory ring of retained cycle results.
	HistorySize int
}

// agentTrack accumulates the raw numbers behind one agent's digest.
type agentTrack struct {
	digest       domain.PerformanceDigest
	prevRealized float64
	wins         int
	losses       int
	peakValue    float64
}

// Runtime composes one coordinator run loop with history, performance
// tracking, bus publication, and notifications. It implements
// coordinator.PerformanceSource for its own roster.
type Runtime struct {
	cfg       Config
	coord     *coordinator.Coordinator
	agents    []coordinator.Agent
	bus       domain.SignalBus
	notif     Announcer
	standings domain.StandingsCache
	logger    *slog.Logger

	stopped atomic.Bool
	trigger chan struct{}

	mu       sync.RWMutex
	tracks   map[string]*agentTrack
	history  []domain.DecisionCycleResult
	board    []domain.LeaderboardEntry
	leaderID string
	cycles   int
	lastRun  time.Time
}

// Status is a point-in-time summary of the runtime for the HTTP surface.
type Status struct {
	Running     bool      `json:"running"`
	CyclesRun   int       `json:"cycles_run"`
	Agents      int       `json:"agents"`
	LastCycleAt time.Time `json:"last_cycle_at"`
	Leader      string    `json:"leader"`
}

// New builds a runtime over an already-wired coordinator roster. bus and
// notif may be nil; publication and announcements are then skipped.
func New(cfg Config, coord *coordinator.Coordinator, agents []coordinator.Agent, bus domain.SignalBus, notif Announcer, logger *slog.Logger) *Runtime {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	tracks := make(map[string]*agentTrack, len(agents))
	for _, ag := range agents {
		tracks[ag.Spec.ID] = &agentTrack{peakValue: ag.Ledger.InitialCapital()}
	}
	return &Runtime{
		cfg:     cfg,
		coord:   coord,
		agents:  agents,
		bus:     bus,
		notif:   notif,
		logger:  logger.With(slog.String("component", "competition")),
		tracks:  tracks,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger returns the channel that forces an out-of-schedule cycle in
// continuous mode. Sends should be non-blocking; a pending trigger already
// covers the request.
func (r *Runtime) Trigger() chan<- struct{} {
	return r.trigger
}

// SetStandingsCache attaches a standings cache refreshed after every cycle
// so read-only processes can serve the leaderboard. Call before the first
// cycle runs.
func (r *Runtime) SetStandingsCache(sc domain.StandingsCache) {
	r.standings = sc
}

// Digest implements coordinator.PerformanceSource.
func (r *Runtime) Digest(agentID string) domain.PerformanceDigest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tr, ok := r.tracks[agentID]; ok {
		return tr.digest
	}
	return domain.PerformanceDigest{}
}

// RunCycle executes one cycle and performs all post-cycle bookkeeping. The
// returned result is the same value retained in history.
func (r *Runtime) RunCycle(ctx context.Context) (domain.DecisionCycleResult, error) {
	if r.stopped.Load() {
		return domain.DecisionCycleResult{}, domain.ErrRuntimeStopped
	}

	res, err := r.coord.RunCycle(ctx)
	if err != nil {
		return domain.DecisionCycleResult{}, err
	}

	r.mu.Lock()
	r.updateTracksLocked(res)
	r.history = append(r.history, res)
	if len(r.history) > r.cfg.HistorySize {
		r.history = r.history[len(r.history)-r.cfg.HistorySize:]
	}
	r.board = res.Leaderboard
	r.cycles++
	r.lastRun = res.Timestamp
	prevLeader := r.leaderID
	if len(res.Leaderboard) > 0 {
		r.leaderID = res.Leaderboard[0].AgentID
	}
	newLeader := r.leaderID
	r.mu.Unlock()

	r.publish(ctx, res)
	r.announce(ctx, res, prevLeader, newLeader)
	return res, nil
}

// RunContinuous drives cycles at the configured interval until the context
// is cancelled, Stop is called, or MaxCycles is reached. Individual cycle
// failures are logged and the loop continues.
func (r *Runtime) RunContinuous(ctx context.Context) error {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	r.logger.Info("competition started",
		slog.Int("agents", len(r.agents)),
		slog.Duration("interval", interval),
	)
	r.announceStatus(ctx, fmt.Sprintf("competition started with %d agents", len(r.agents)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunCycle(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case r.stopped.Load():
				r.logger.Info("competition stopped")
				return nil
			default:
				r.logger.Error("cycle failed", slog.String("error", err.Error()))
			}
		}
		if r.cfg.MaxCycles > 0 && r.CyclesRun() >= r.cfg.MaxCycles {
			r.logger.Info("cycle budget reached", slog.Int("cycles", r.cfg.MaxCycles))
			r.announceStatus(ctx, "competition finished: cycle budget reached")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.trigger:
		case <-ticker.C:
		}
		if r.stopped.Load() {
			r.logger.Info("competition stopped")
			return nil
		}
	}
}

// Stop makes all future cycles fail fast with ErrRuntimeStopped. In-flight
// cycles finish normally.
func (r *Runtime) Stop() {
	r.stopped.Store(true)
}

// Leaderboard returns the standings after the most recent cycle.
func (r *Runtime) Leaderboard() []domain.LeaderboardEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.LeaderboardEntry, len(r.board))
	copy(out, r.board)
	return out
}

// PortfolioSnapshot returns the live view of one agent's ledger.
func (r *Runtime) PortfolioSnapshot(agentID string) (domain.PortfolioView, error) {
	for _, ag := range r.agents {
		if ag.Spec.ID == agentID {
			return ag.Ledger.View(), nil
		}
	}
	return domain.PortfolioView{}, fmt.Errorf("%w: %s", domain.ErrUnknownAgent, agentID)
}

// AgentIDs lists the roster in a stable order.
func (r *Runtime) AgentIDs() []string {
	ids := make([]string, 0, len(r.agents))
	for _, ag := range r.agents {
		ids = append(ids, ag.Spec.ID)
	}
	sort.Strings(ids)
	return ids
}

// History returns up to limit of the most recent cycle results, newest last.
// limit <= 0 returns everything retained.
func (r *Runtime) History(limit int) []domain.DecisionCycleResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.DecisionCycleResult, n)
	copy(out, r.history[len(r.history)-n:])
	return out
}

// CyclesRun reports how many cycles completed successfully.
func (r *Runtime) CyclesRun() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cycles
}

// Status summarizes the runtime for the status endpoint.
func (r *Runtime) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		Running:     !r.stopped.Load(),
		CyclesRun:   r.cycles,
		Agents:      len(r.agents),
		LastCycleAt: r.lastRun,
		Leader:      r.leaderID,
	}
}

// updateTracksLocked refreshes every digest from the cycle's portfolio
// views. A positive realized delta counts as a winning cycle, a negative
// one as losing; flat cycles leave the win rate untouched.
func (r *Runtime) updateTracksLocked(res domain.DecisionCycleResult) {
	for _, entry := range res.Leaderboard {
		tr, ok := r.tracks[entry.AgentID]
		if !ok {
			continue
		}
		view, ok := res.Portfolios[entry.AgentID]
		if !ok {
			continue
		}

		delta := view.TotalRealizedPnL - tr.prevRealized
		if delta > 0 {
			tr.wins++
		} else if delta < 0 {
			tr.losses++
		}
		tr.prevRealized = view.TotalRealizedPnL

		if view.TotalValue > tr.peakValue {
			tr.peakValue = view.TotalValue
		}
		drawdown := 0.0
		if tr.peakValue > 0 {
			drawdown = (tr.peakValue - view.TotalValue) / tr.peakValue * 100
		}

		tr.digest.ReturnPct = entry.ReturnPct
		tr.digest.TotalTrades = view.TradeCount
		if settled := tr.wins + tr.losses; settled > 0 {
			tr.digest.WinRate = float64(tr.wins) / float64(settled)
		}
		if drawdown > tr.digest.MaxDrawdownPct {
			tr.digest.MaxDrawdownPct = drawdown
		}
		tr.digest.UpdatedAt = res.Timestamp
	}
}

// cycleEvent is the wire shape published to the cycles channel and stream.
type cycleEvent struct {
	CycleID     string                    `json:"cycle_id"`
	Seq         uint64                    `json:"seq"`
	Timestamp   time.Time                 `json:"timestamp"`
	Fills       int                       `json:"fills"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

func (r *Runtime) publish(ctx context.Context, res domain.DecisionCycleResult) {
	if r.standings != nil {
		if err := r.standings.SetLeaderboard(ctx, res.Leaderboard, res.Timestamp); err != nil {
			r.logger.Warn("refresh standings cache", slog.String("error", err.Error()))
		}
	}
	if r.bus == nil {
		return
	}
	evt := cycleEvent{
		CycleID:     res.CycleID,
		Seq:         res.Seq,
		Timestamp:   res.Timestamp,
		Fills:       res.FilledCount(),
		Leaderboard: res.Leaderboard,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error("marshal cycle event", slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Publish(ctx, domain.ChannelCycles, payload); err != nil {
		r.logger.Warn("publish cycle event", slog.String("error", err.Error()))
	}
	if err := r.bus.StreamAppend(ctx, domain.StreamCycles, payload); err != nil {
		r.logger.Warn("append cycle stream", slog.String("error", err.Error()))
	}
	if board, err := json.Marshal(res.Leaderboard); err == nil {
		if err := r.bus.Publish(ctx, domain.ChannelLeaderboard, board); err != nil {
			r.logger.Warn("publish leaderboard", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) announce(ctx context.Context, res domain.DecisionCycleResult, prevLeader, newLeader string) {
	if r.notif == nil {
		return
	}
	if fills := res.FilledCount(); fills > 0 {
		r.notif.Announce(ctx, EventCycleComplete,
			fmt.Sprintf("cycle %d complete: %d fills across %d agents", res.Seq, fills, len(res.Decisions)))
	}
	if prevLeader != "" && newLeader != prevLeader {
		r.notif.Announce(ctx, EventLeaderChange,
			fmt.Sprintf("%s takes the lead from %s", newLeader, prevLeader))
	}
}

func (r *Runtime) announceStatus(ctx context.Context, msg string) {
	if r.notif == nil {
		return
	}
	r.notif.Announce(ctx, EventRuntimeStatus, msg)
}
