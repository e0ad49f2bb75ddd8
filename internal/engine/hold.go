package engine

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// Hold is the do-nothing baseline engine. An agent running it keeps its
// initial capital untouched, which makes it a useful floor on the
// leaderboard and a trivial reference for the DecisionEngine contract.
type Hold struct {
	logger *slog.Logger
}

// NewHold creates a hold engine.
func NewHold(logger *slog.Logger) *Hold {
	return &Hold{logger: logger}
}

// Compose always waits.
func (h *Hold) Compose(_ context.Context, cc domain.ComposeContext) (domain.ComposeResult, error) {
	return domain.WaitResult(cc.AgentID, "hold baseline never trades"), nil
}
