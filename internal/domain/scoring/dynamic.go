package scoring

import (
	"math"

	"github.com/okian/sabre/internal/domain/model"
)

// rarityStep is one row of the ordered rarity table. Rows are evaluated
// in ascending threshold order; first match wins.
type rarityStep struct {
	below      float64
	multiplier float64
}

// rarityTable maps the solve rate (solves before this one / eligible
// teams) to a rarity multiplier. Non-increasing in solve rate.
var rarityTable = []rarityStep{
	{below: 0.10, multiplier: 1.8},
	{below: 0.25, multiplier: 1.5},
	{below: 0.50, multiplier: 1.2},
	{below: 0.80, multiplier: 1.0},
}

const (
	unsolvedMultiplier  = 2.0
	wellKnownMultiplier = 0.7
)

// rarityMultiplier returns the multiplier for a given solve rate.
func rarityMultiplier(rate float64) float64 {
	if rate <= 0 {
		return unsolvedMultiplier
	}
	for _, step := range rarityTable {
		if rate < step.below {
			return step.multiplier
		}
	}
	return wellKnownMultiplier
}

// MinPoints is the floor every accepted solve is guaranteed:
// round(basePoints * 0.3).
func MinPoints(basePoints int) int {
	if basePoints <= 0 {
		return 0
	}
	return int(math.Round(float64(basePoints) * minScoreFraction))
}

// DynamicPoints converts a challenge's base value into its
// rarity-adjusted value. solveCount must be the number of accepted
// solves BEFORE the current one, so a team's own solve never changes
// its own multiplier. eligibleTeams is the number of teams competing;
// zero disables rarity scaling entirely.
//
// DynamicPoints never fails: missing or invalid fields fall back to
// neutral multipliers.
func DynamicPoints(ch model.Challenge, solveCount, eligibleTeams int, cfg Config) int {
	base := ch.BasePoints
	if base <= 0 {
		return 0
	}
	if !cfg.DynamicScoring || eligibleTeams <= 0 {
		return base
	}
	if solveCount < 0 {
		solveCount = 0
	}

	rate := float64(solveCount) / float64(eligibleTeams)
	points := float64(base) * rarityMultiplier(rate)
	points *= cfg.difficultyMultiplier(ch.Difficulty)
	points *= cfg.categoryMultiplier(ch.Category)
	if ch.Daily {
		points *= dailyMultiplier
	}

	rounded := int(math.Round(points))
	if floor := MinPoints(base); rounded < floor {
		return floor
	}
	return rounded
}
