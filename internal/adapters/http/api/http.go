// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/sabre/internal/adapters/directory"
	"github.com/okian/sabre/internal/adapters/repository"
	"github.com/okian/sabre/internal/domain/dedupe"
	"github.com/okian/sabre/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a solve event for async scoring. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, ev model.SolveEvent) bool

	// Challenge resolves a challenge definition by id.
	Challenge(ctx context.Context, id string) (model.Challenge, error)

	// Read operations expose scoreboard data.
	TopN(ctx context.Context, n int) ([]Standing, error)
	Standing(ctx context.Context, teamID string) (Standing, error)
	Breakdown(ctx context.Context, teamID, challengeID string) (model.Solve, error)
}

// Standing mirrors the read shape returned by scoreboard queries.
type Standing = repository.Standing

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	solvesHandler     *SolvesHandler
	scoreboardHandler *ScoreboardHandler
	standingHandler   *StandingHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxScoreboardLimit int) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		solvesHandler:     NewSolvesHandler(deps),
		scoreboardHandler: NewScoreboardHandler(deps, maxScoreboardLimit),
		standingHandler:   NewStandingHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/solves", MetricsMiddleware(s.solvesHandler.HandlePostSolve, "solves"))
	mux.HandleFunc("/solves/", MetricsMiddleware(s.solvesHandler.HandleGetBreakdown, "breakdown"))
	mux.HandleFunc("/scoreboard", MetricsMiddleware(s.scoreboardHandler.HandleGetScoreboard, "scoreboard"))
	mux.HandleFunc("/standing/", MetricsMiddleware(s.standingHandler.HandleGetStanding, "standing"))
}

// solveRequest mirrors the OpenAPI schema for POST /solves.
type solveRequest struct {
	SubmissionID string `json:"submission_id"`
	ChallengeID  string `json:"challenge_id"`
	TeamID       string `json:"team_id"`
	TeamSize     int    `json:"team_size"`
	SolvedAt     string `json:"solved_at"`
}

func (s solveRequest) validate() error {
	switch {
	case strings.TrimSpace(s.SubmissionID) == "":
		return errors.New("missing submission_id")
	case strings.TrimSpace(s.ChallengeID) == "":
		return errors.New("missing challenge_id")
	case strings.TrimSpace(s.TeamID) == "":
		return errors.New("missing team_id")
	case s.TeamSize < 1:
		return errors.New("team_size must be at least 1")
	case strings.TrimSpace(s.SolvedAt) == "":
		return errors.New("missing solved_at")
	}
	if _, err := time.Parse(time.RFC3339, s.SolvedAt); err != nil {
		return errors.New("invalid solved_at; must be RFC3339")
	}
	return nil
}

// event converts the request into the queue payload. validate must have
// succeeded first.
func (s solveRequest) event() model.SolveEvent {
	solvedAt, _ := time.Parse(time.RFC3339, s.SolvedAt)
	return model.SolveEvent{
		SubmissionID: s.SubmissionID,
		ChallengeID:  s.ChallengeID,
		TeamID:       s.TeamID,
		TeamSize:     s.TeamSize,
		SolvedAt:     solvedAt,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, directory.ErrUnknownChallenge)
}
