// Package repository defines the solve store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/okian/sabre/internal/domain/model"
)

// Standing is one scoreboard row.
type Standing struct {
	Rank        int       `json:"rank"`
	TeamID      string    `json:"team_id"`
	Points      int       `json:"points"`
	Solves      int       `json:"solves"`
	LastSolveAt time.Time `json:"last_solve_at"`
}

// Store provides read/write access to accepted solves and the standings
// derived from them.
//
// ConditionalInsert is the single source of truth for at-most-once
// awards: it succeeds if and only if no record exists for the same
// (team, challenge) pair, atomically with respect to concurrent
// callers. Everything else is a read, except StripFirstBlood, which
// exists solely for the confirm-after-write demotion step.
type Store interface {
	// ConditionalInsert persists a solve unless one already exists for
	// the same (team, challenge). Returns ErrDuplicate otherwise.
	ConditionalInsert(ctx context.Context, s model.Solve) error

	// GetSolve returns the persisted solve for a team and challenge.
	// Returns ErrNotFound if the team has not solved the challenge.
	GetSolve(ctx context.Context, teamID, challengeID string) (model.Solve, error)

	// CountSolves returns the number of accepted solves for a challenge.
	CountSolves(ctx context.Context, challengeID string) (int, error)

	// EarliestSolve returns the first accepted solve of a challenge.
	// "First" is commit order: whichever conditional insert landed
	// first, regardless of the client-supplied solve timestamps.
	// Returns ErrNotFound if the challenge is unsolved.
	EarliestSolve(ctx context.Context, challengeID string) (model.Solve, error)

	// StripFirstBlood removes the first-blood bonus from a persisted
	// solve and returns the corrected record. A no-op when the record
	// carries no bonus.
	StripFirstBlood(ctx context.Context, teamID, challengeID string) (model.Solve, error)

	// TopN returns the top-N standings ordered by points desc.
	TopN(ctx context.Context, n int) ([]Standing, error)

	// Standing returns the standing of a single team.
	// Returns ErrNotFound for teams with no solves.
	Standing(ctx context.Context, teamID string) (Standing, error)

	// SolvesByTeam returns all solves of a team, newest first.
	SolvesByTeam(ctx context.Context, teamID string) ([]model.Solve, error)

	// TeamCount returns the number of teams with at least one solve.
	TeamCount(ctx context.Context) int

	// SolveCount returns the total number of persisted solves.
	SolveCount(ctx context.Context) int
}
