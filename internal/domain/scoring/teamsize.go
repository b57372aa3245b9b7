package scoring

// TeamSizeModifier computes the multiplicative penalty for larger
// teams. Solo play is never penalized; the modifier decreases
// monotonically with team size and bottoms out at 0.7 no matter how
// large the team grows. Returns 1.0 when the penalty toggle is off.
func TeamSizeModifier(teamSize int, cfg Config) float64 {
	if !cfg.TeamSizePenalty {
		return 1.0
	}
	if teamSize <= 1 {
		return 1.0
	}

	maxSize := cfg.MaxTeamSize
	if maxSize < 1 {
		maxSize = 1
	}

	m := 1.0 - (float64(teamSize)/float64(maxSize)-1.0)*teamSizePenaltySlope
	if m > 1.0 {
		return 1.0
	}
	if m < teamSizeModifierMin {
		return teamSizeModifierMin
	}
	return m
}
