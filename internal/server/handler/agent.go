package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// AgentSource defines what the agent handler needs from the runtime.
type AgentSource interface {
	AgentIDs() []string
	PortfolioSnapshot(agentID string) (domain.PortfolioView, error)
}

// AgentHandler serves agent roster and portfolio endpoints.
type AgentHandler struct {
	src    AgentSource
	logger *slog.Logger
}

// NewAgentHandler creates an AgentHandler with the given source and logger.
func NewAgentHandler(src AgentSource, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{src: src, logger: logger}
}

// ListAgents returns the competing agent ids.
// GET /api/agents
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	ids := h.src.AgentIDs()
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": ids,
		"count":  len(ids),
	})
}

// GetPortfolio returns one agent's live portfolio view.
// GET /api/agents/{id}/portfolio
func (h *AgentHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing agent id")
		return
	}

	view, err := h.src.PortfolioSnapshot(id)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAgent) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: portfolio snapshot failed",
			slog.String("agent", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get portfolio")
		return
	}

	writeJSON(w, http.StatusOK, view)
}
