// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/sabre/internal/domain/dedupe"
	"github.com/okian/sabre/internal/domain/model"
)

// SolveDependencies defines the interface for solve ingestion and lookup.
type SolveDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, ev model.SolveEvent) bool
	Challenge(ctx context.Context, id string) (model.Challenge, error)
	Breakdown(ctx context.Context, teamID, challengeID string) (model.Solve, error)
}

// SolvesHandler handles solve submissions and breakdown lookups.
type SolvesHandler struct {
	deps SolveDependencies
}

// NewSolvesHandler creates a new solves handler.
func NewSolvesHandler(deps SolveDependencies) *SolvesHandler {
	return &SolvesHandler{deps: deps}
}

// HandlePostSolve handles POST /solves requests.
//
// The submission id is the idempotency key: a replay answers 200 with
// duplicate=true and awards nothing. Acceptance is asynchronous; a 202
// means the solve was queued for scoring, not that points were awarded.
func (h *SolvesHandler) HandlePostSolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_solve"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w", op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w", op, err))
		return
	}

	// Reject unknown challenges before touching the dedupe cache so a
	// typo'd submission can be retried with the same id.
	if _, err := h.deps.Challenge(r.Context(), req.ChallengeID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "unknown_challenge", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), req.SubmissionID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	// Try to enqueue for async scoring
	if ok := h.deps.Enqueue(r.Context(), req.event()); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), req.SubmissionID)
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}

// HandleGetBreakdown handles GET /solves/{team_id}/{challenge_id} requests.
func (h *SolvesHandler) HandleGetBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameters after /solves/
	path := strings.TrimPrefix(r.URL.Path, "/solves/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	solve, err := h.deps.Breakdown(r.Context(), parts[0], parts[1])
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, solve)
}
