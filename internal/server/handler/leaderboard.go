package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// LeaderboardSource supplies the current standings.
type LeaderboardSource interface {
	Leaderboard() []domain.LeaderboardEntry
}

// LeaderboardHandler serves the ranked standings.
type LeaderboardHandler struct {
	src LeaderboardSource
}

// NewLeaderboardHandler creates a LeaderboardHandler over the given source.
func NewLeaderboardHandler(src LeaderboardSource) *LeaderboardHandler {
	return &LeaderboardHandler{src: src}
}

// leaderboardResponse wraps the standings with a fetch timestamp.
type leaderboardResponse struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	AsOf        string                    `json:"as_of"`
}

// GetLeaderboard returns the standings after the most recent cycle. The list
// is empty until the first cycle completes.
// GET /api/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board := h.src.Leaderboard()
	if board == nil {
		board = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Leaderboard: board,
		AsOf:        time.Now().UTC().Format(time.RFC3339),
	})
}
