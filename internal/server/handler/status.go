package handler

import (
	"net/http"

	"github.com/alanyoungcy/paperarena/internal/competition"
)

// StatusSource supplies the runtime summary served by the status endpoint.
// It is declared locally so the handler package does not depend on the
// concrete runtime.
type StatusSource interface {
	Status() competition.Status
}

// StatusHandler serves the competition status for the dashboard.
type StatusHandler struct {
	src  StatusSource
	mode string
}

// NewStatusHandler creates a StatusHandler over the given source. mode names
// the process mode (compete, once, monitor).
func NewStatusHandler(src StatusSource, mode string) *StatusHandler {
	return &StatusHandler{src: src, mode: mode}
}

// GetStatus responds with the current runtime status and process mode.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":   h.mode,
		"status": h.src.Status(),
	})
}
