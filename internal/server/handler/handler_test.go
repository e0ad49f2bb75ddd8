package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

type stubRuntime struct {
	board   []domain.LeaderboardEntry
	views   map[string]domain.PortfolioView
	history []domain.DecisionCycleResult
}

func (s *stubRuntime) Leaderboard() []domain.LeaderboardEntry { return s.board }

func (s *stubRuntime) AgentIDs() []string {
	ids := make([]string, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	return ids
}

func (s *stubRuntime) PortfolioSnapshot(agentID string) (domain.PortfolioView, error) {
	view, ok := s.views[agentID]
	if !ok {
		return domain.PortfolioView{}, domain.ErrUnknownAgent
	}
	return view, nil
}

func (s *stubRuntime) History(limit int) []domain.DecisionCycleResult {
	if limit > 0 && limit < len(s.history) {
		return s.history[len(s.history)-limit:]
	}
	return s.history
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(slog.Default())
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetLeaderboard(t *testing.T) {
	rt := &stubRuntime{board: []domain.LeaderboardEntry{
		{AgentID: "alpha", PortfolioValue: 10_500, Rank: 1},
		{AgentID: "beta", PortfolioValue: 9_900, Rank: 2},
	}}
	h := NewLeaderboardHandler(rt)

	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body leaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Leaderboard, 2)
	assert.Equal(t, "alpha", body.Leaderboard[0].AgentID)
}

func TestGetLeaderboardEmptyIsList(t *testing.T) {
	h := NewLeaderboardHandler(&stubRuntime{})
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

	assert.Contains(t, rec.Body.String(), `"leaderboard":[]`)
}

func TestGetPortfolio(t *testing.T) {
	rt := &stubRuntime{views: map[string]domain.PortfolioView{
		"alpha": {AgentID: "alpha", Cash: 9_000, TotalValue: 10_100},
	}}
	h := NewAgentHandler(rt, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/agents/alpha/portfolio", nil)
	req.SetPathValue("id", "alpha")
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var view domain.PortfolioView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "alpha", view.AgentID)
	assert.InDelta(t, 10_100, view.TotalValue, 1e-9)
}

func TestGetPortfolioUnknownAgent(t *testing.T) {
	h := NewAgentHandler(&stubRuntime{views: map[string]domain.PortfolioView{}}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/agents/ghost/portfolio", nil)
	req.SetPathValue("id", "ghost")
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCyclesSummarizes(t *testing.T) {
	rt := &stubRuntime{history: []domain.DecisionCycleResult{
		{
			CycleID:   "c1",
			Seq:       1,
			Timestamp: time.Now().UTC(),
			Decisions: []domain.ComposeResult{{AgentID: "alpha"}},
			Results: []domain.TxResult{
				{Status: domain.TxStatusFilled},
				{Status: domain.TxStatusRejected},
			},
		},
	}}
	h := NewCycleHandler(rt, slog.Default())

	rec := httptest.NewRecorder()
	h.ListCycles(rec, httptest.NewRequest(http.MethodGet, "/api/cycles", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Cycles []cycleSummary `json:"cycles"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "c1", body.Cycles[0].CycleID)
	assert.Equal(t, 1, body.Cycles[0].Decisions)
	assert.Equal(t, 1, body.Cycles[0].Fills)
}

func TestTriggerCycleNonBlocking(t *testing.T) {
	ch := make(chan struct{}, 1)
	h := NewCycleHandler(&stubRuntime{}, slog.Default()).WithTriggerChannel(ch)

	// Two rapid triggers must not block even though nothing consumes.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.TriggerCycle(rec, httptest.NewRequest(http.MethodPost, "/api/cycles/trigger", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}
	assert.Len(t, ch, 1)
}
