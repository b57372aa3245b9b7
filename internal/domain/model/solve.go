// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

// Difficulty is the challenge difficulty tier.
type Difficulty string

// Known difficulty tiers. Anything else is scored with neutral defaults.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Known reports whether d is one of the defined tiers.
func (d Difficulty) Known() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// Challenge is the immutable-for-scoring snapshot of a challenge.
// Challenge management owns the record; the engine only reads one
// snapshot per computation.
type Challenge struct {
	ID         string
	BasePoints int
	Difficulty Difficulty
	Category   string
	Daily      bool
	ReleasedAt time.Time
}

// SolveEvent is the unit of work the engine accepts: one accepted flag
// submission, already verified upstream. It carries no derived data.
type SolveEvent struct {
	SubmissionID string // idempotency key for retried requests
	ChallengeID  string
	TeamID       string
	TeamSize     int
	SolvedAt     time.Time
}

// ScoreBreakdown is the auditable result of one scoring computation.
// It is a pure value; recomputing the total from its own fields must
// reproduce TotalPoints exactly.
type ScoreBreakdown struct {
	BasePoints       int     `json:"base_points"`
	DynamicPoints    int     `json:"dynamic_points"`
	FirstBloodBonus  int     `json:"first_blood_bonus"`
	SpeedBonus       int     `json:"speed_bonus"`
	TeamSizeModifier float64 `json:"team_size_modifier"`
	TotalPoints      int     `json:"total_points"`
	IsFirstBlood     bool    `json:"is_first_blood"`

	// Echo of the inputs used, for audit replay.
	Difficulty Difficulty `json:"difficulty"`
	Category   string     `json:"category"`
	Daily      bool       `json:"daily"`
	SolvedAt   time.Time  `json:"solved_at"`
}

// Recompute derives the total from the recorded component fields alone,
// applying the same minimum-score floor the engine applies: the
// modifier-adjusted dynamic points never drop below round(base * 0.3).
func (b ScoreBreakdown) Recompute() int {
	adjusted := int(math.Round(float64(b.DynamicPoints) * b.TeamSizeModifier))
	if floor := int(math.Round(float64(b.BasePoints) * 0.3)); adjusted < floor && b.BasePoints > 0 {
		adjusted = floor
	}
	return adjusted + b.FirstBloodBonus + b.SpeedBonus
}

// Solve is the persisted record of an accepted solve.
type Solve struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challenge_id"`
	TeamID      string `json:"team_id"`
	TeamSize    int    `json:"team_size"`

	SolvedAt  time.Time      `json:"solved_at"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}
