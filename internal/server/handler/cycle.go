package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// HistorySource supplies retained cycle results, newest last.
type HistorySource interface {
	History(limit int) []domain.DecisionCycleResult
}

// CycleHandler serves cycle history and the manual cycle trigger.
type CycleHandler struct {
	src       HistorySource
	logger    *slog.Logger
	triggerCh chan<- struct{} // when non-nil, sending triggers one cycle
}

// NewCycleHandler creates a CycleHandler with the given source and logger.
func NewCycleHandler(src HistorySource, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{src: src, logger: logger}
}

// WithTriggerChannel sets the channel to send on when a trigger is requested.
// The competition loop must receive from this channel to run one cycle.
func (h *CycleHandler) WithTriggerChannel(ch chan<- struct{}) *CycleHandler {
	h.triggerCh = ch
	return h
}

// cycleSummary is the compact per-cycle shape the history endpoint returns.
// Full decision and fill detail stays in process; the API serves what a
// dashboard needs to render a timeline.
type cycleSummary struct {
	CycleID     string                    `json:"cycle_id"`
	Seq         uint64                    `json:"seq"`
	Timestamp   time.Time                 `json:"timestamp"`
	Decisions   int                       `json:"decisions"`
	Fills       int                       `json:"fills"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// ListCycles returns summaries of the most recent cycles, newest last.
// GET /api/cycles?limit=20
func (h *CycleHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)
	results := h.src.History(limit)

	summaries := make([]cycleSummary, 0, len(results))
	for _, res := range results {
		summaries = append(summaries, cycleSummary{
			CycleID:     res.CycleID,
			Seq:         res.Seq,
			Timestamp:   res.Timestamp,
			Decisions:   len(res.Decisions),
			Fills:       res.FilledCount(),
			Leaderboard: res.Leaderboard,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": summaries,
		"count":  len(summaries),
	})
}

// TriggerCycle enqueues one out-of-schedule cycle. A non-blocking send is
// performed so a pending trigger is never duplicated.
// POST /api/cycles/trigger
func (h *CycleHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: cycle trigger requested")
	if h.triggerCh != nil {
		select {
		case h.triggerCh <- struct{}{}:
		default:
			// already triggered and not yet consumed
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"message":      "cycle trigger enqueued",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
