package scoring

import (
	"context"
	"math"

	"github.com/okian/sabre/internal/domain/model"
	"github.com/okian/sabre/pkg/logger"
)

// ConfigSource returns one consistent snapshot of the scoring
// configuration per call.
type ConfigSource interface {
	CurrentConfig(ctx context.Context) (Config, error)
}

// TeamSource reports how many teams are eligible to solve challenges.
type TeamSource interface {
	EligibleTeamCount(ctx context.Context) (int, error)
}

// Aggregator orchestrates one scoring computation: it loads a config
// snapshot, computes the four dimensions independently, combines them,
// and finalizes an auditable breakdown.
//
// Aggregator never performs the durable write and never fails: any
// collaborator read error degrades to built-in defaults, because a
// correctly verified flag must always receive a score. The returned
// IsFirstBlood is a candidate; the caller owns the conditional write
// and the confirm-after-write re-check.
type Aggregator struct {
	config ConfigSource
	solves SolveSource
	teams  TeamSource
	log    logger.Logger
}

// AggregatorOption applies a configuration option to the Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets a logger for degraded-read warnings.
func WithLogger(l logger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAggregator creates an Aggregator over the given collaborators.
func NewAggregator(config ConfigSource, solves SolveSource, teams TeamSource, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		config: config,
		solves: solves,
		teams:  teams,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Score computes the full breakdown for one accepted solve. All reads
// happen up front; the computation itself is bounded and synchronous.
func (a *Aggregator) Score(ctx context.Context, ev model.SolveEvent, ch model.Challenge) model.ScoreBreakdown {
	cfg, err := a.config.CurrentConfig(ctx)
	if err != nil {
		a.warn(ctx, "config read failed, scoring with defaults", ev, err)
		cfg = DefaultConfig()
	}
	cfg = cfg.Clamped()

	solveCount, err := a.solves.CountSolves(ctx, ev.ChallengeID)
	if err != nil {
		a.warn(ctx, "solve count read failed, assuming zero solves", ev, err)
		solveCount = 0
	}
	eligibleTeams, err := a.teams.EligibleTeamCount(ctx)
	if err != nil {
		a.warn(ctx, "eligible team count read failed, rarity scaling off", ev, err)
		eligibleTeams = 0
	}

	// The four dimensions are independent; order does not matter.
	dynamicPoints := DynamicPoints(ch, solveCount, eligibleTeams, cfg)
	firstBlood, err := ResolveFirstBlood(ctx, a.solves, ev.ChallengeID, cfg)
	if err != nil {
		a.warn(ctx, "earliest solve read failed, offering candidate first blood", ev, err)
	}
	speedBonus := SpeedBonus(ch.ReleasedAt, ev.SolvedAt, ch.Difficulty, cfg)
	modifier := TeamSizeModifier(ev.TeamSize, cfg)

	// The floor applies after the team-size modifier: a large team can
	// shave the dynamic value, but never below round(base * 0.3).
	adjusted := int(math.Round(float64(dynamicPoints) * modifier))
	if floor := MinPoints(ch.BasePoints); adjusted < floor {
		adjusted = floor
	}
	total := adjusted + firstBlood.Bonus + speedBonus

	return model.ScoreBreakdown{
		BasePoints:       ch.BasePoints,
		DynamicPoints:    dynamicPoints,
		FirstBloodBonus:  firstBlood.Bonus,
		SpeedBonus:       speedBonus,
		TeamSizeModifier: modifier,
		TotalPoints:      total,
		IsFirstBlood:     firstBlood.IsFirstBlood,
		Difficulty:       ch.Difficulty,
		Category:         ch.Category,
		Daily:            ch.Daily,
		SolvedAt:         ev.SolvedAt,
	}
}

func (a *Aggregator) warn(ctx context.Context, msg string, ev model.SolveEvent, err error) {
	if a.log == nil {
		return
	}
	a.log.Warn(ctx, msg,
		logger.String("challengeID", ev.ChallengeID),
		logger.String("teamID", ev.TeamID),
		logger.Error(err),
	)
}
