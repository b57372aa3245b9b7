// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
)

// StandingDependencies defines the interface for standing operations.
type StandingDependencies interface {
	Standing(ctx context.Context, teamID string) (Standing, error)
}

// StandingHandler handles per-team standing requests.
type StandingHandler struct {
	deps StandingDependencies
}

// NewStandingHandler creates a new standing handler.
func NewStandingHandler(deps StandingDependencies) *StandingHandler {
	return &StandingHandler{deps: deps}
}

// HandleGetStanding handles GET /standing/{team_id} requests.
func (h *StandingHandler) HandleGetStanding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /standing/
	path := strings.TrimPrefix(r.URL.Path, "/standing/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	standing, err := h.deps.Standing(r.Context(), path)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, standing)
}
