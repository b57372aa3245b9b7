package scoring

import (
	"time"

	"github.com/okian/sabre/internal/domain/model"
)

// speedWindow holds the per-difficulty thresholds, in hours.
type speedWindow struct {
	fast   float64
	medium float64
}

// speedWindows keys fast/medium solve windows by difficulty. Unknown
// difficulties use the medium row.
var speedWindows = map[model.Difficulty]speedWindow{
	model.DifficultyEasy:   {fast: 1, medium: 6},
	model.DifficultyMedium: {fast: 2, medium: 12},
	model.DifficultyHard:   {fast: 4, medium: 24},
	model.DifficultyExpert: {fast: 8, medium: 48},
}

// SpeedBonus rewards solving soon after a challenge's release. Negative
// elapsed time (clock skew, missing release timestamp) yields zero, not
// an error.
func SpeedBonus(releasedAt, solvedAt time.Time, d model.Difficulty, cfg Config) int {
	if !cfg.SpeedBonus {
		return 0
	}
	if releasedAt.IsZero() || solvedAt.IsZero() {
		return 0
	}
	elapsed := solvedAt.Sub(releasedAt)
	if elapsed < 0 {
		return 0
	}

	window, ok := speedWindows[d]
	if !ok {
		window = speedWindows[model.DifficultyMedium]
	}

	hours := elapsed.Hours()
	switch {
	case hours <= window.fast:
		return fastSolveBonus
	case hours <= window.medium:
		return mediumSolveBonus
	default:
		return 0
	}
}
