// Package scoring implements the award engine: it turns one accepted
// solve into a final point total by combining rarity-based dynamic
// points, a first-blood bonus, a speed bonus and a team-size penalty.
//
// Every calculator is a pure function of its inputs and a Config
// snapshot. Nothing in this package mutates state or returns an error:
// a correct flag submission must always receive a score, so bad inputs
// degrade to neutral defaults instead of failing.
package scoring

import (
	"github.com/okian/sabre/internal/domain/model"
)

// Default scoring constants.
const (
	defaultFirstBloodBonus = 50
	defaultMaxTeamSize     = 4

	// minScoreFraction guarantees totalPoints >= round(base * 0.3).
	minScoreFraction = 0.3

	// dailyMultiplier applies to challenges flagged as daily.
	dailyMultiplier = 1.5

	// Speed bonus awards.
	fastSolveBonus   = 25
	mediumSolveBonus = 10

	// Team-size penalty shape.
	teamSizePenaltySlope = 0.3
	teamSizeModifierMin  = 0.7
)

// Config is one consistent snapshot of the competition-wide scoring
// knobs. It is passed by value into every computation; a concurrent
// admin update never bleeds into an in-flight score.
type Config struct {
	DifficultyMultipliers map[model.Difficulty]float64 `koanf:"difficulty_multipliers"`
	CategoryMultipliers   map[string]float64           `koanf:"category_multipliers"`
	FirstBloodBonus       int                          `koanf:"first_blood_bonus"`
	DynamicScoring        bool                         `koanf:"dynamic_scoring"`
	TeamSizePenalty       bool                         `koanf:"team_size_penalty"`
	SpeedBonus            bool                         `koanf:"speed_bonus"`
	MaxTeamSize           int                          `koanf:"max_team_size"`
}

// DefaultConfig returns the built-in scoring configuration, also used
// as the fallback when the configuration store is unreachable.
func DefaultConfig() Config {
	return Config{
		DifficultyMultipliers: map[model.Difficulty]float64{
			model.DifficultyEasy:   1.0,
			model.DifficultyMedium: 1.3,
			model.DifficultyHard:   1.6,
			model.DifficultyExpert: 2.0,
		},
		CategoryMultipliers: map[string]float64{
			"crypto":    1.2,
			"pwn":       1.3,
			"reversing": 1.2,
			"web":       1.0,
			"forensics": 1.1,
			"misc":      0.9,
		},
		FirstBloodBonus: defaultFirstBloodBonus,
		DynamicScoring:  true,
		TeamSizePenalty: true,
		SpeedBonus:      true,
		MaxTeamSize:     defaultMaxTeamSize,
	}
}

// Clamped returns a copy with invalid values pulled back to the nearest
// valid ones. A misconfigured competition still scores every solve.
func (c Config) Clamped() Config {
	if c.FirstBloodBonus < 0 {
		c.FirstBloodBonus = 0
	}
	if c.MaxTeamSize < 1 {
		c.MaxTeamSize = 1
	}
	return c
}

// difficultyMultiplier looks up the multiplier for d, defaulting to 1.0.
func (c Config) difficultyMultiplier(d model.Difficulty) float64 {
	if m, ok := c.DifficultyMultipliers[d]; ok && m > 0 {
		return m
	}
	return 1.0
}

// categoryMultiplier looks up the multiplier for category, defaulting to 1.0.
func (c Config) categoryMultiplier(category string) float64 {
	if m, ok := c.CategoryMultipliers[category]; ok && m > 0 {
		return m
	}
	return 1.0
}
