package scoring

import (
	"context"

	"github.com/okian/sabre/internal/domain/model"
)

// SolveSource provides point-in-time, read-only views of accepted
// solves. The ok return on EarliestSolve distinguishes "no solve yet"
// from a read failure.
type SolveSource interface {
	// CountSolves returns the number of accepted solves for a
	// challenge, not including any solve currently being scored.
	CountSolves(ctx context.Context, challengeID string) (int, error)

	// EarliestSolve returns the earliest accepted solve of a challenge,
	// ok=false when the challenge is unsolved.
	EarliestSolve(ctx context.Context, challengeID string) (model.Solve, bool, error)
}

// FirstBloodResolution is the advisory outcome of a first-blood check.
type FirstBloodResolution struct {
	Bonus        int
	IsFirstBlood bool
}

// ResolveFirstBlood decides whether the current submission would be the
// first accepted solve of a challenge and what bonus to offer.
//
// The read is advisory: it determines the value to offer, not ground
// truth. Ground truth is the solve repository's conditional insert; the
// caller must re-check after its write succeeds. The resolver never
// mutates state and never adjudicates timestamp ties itself.
//
// A failed read degrades to "no existing solves" so a correct flag is
// still scored; the confirm-after-write step corrects any over-offer.
func ResolveFirstBlood(ctx context.Context, src SolveSource, challengeID string, cfg Config) (FirstBloodResolution, error) {
	_, ok, err := src.EarliestSolve(ctx, challengeID)
	if err != nil {
		return FirstBloodResolution{Bonus: cfg.FirstBloodBonus, IsFirstBlood: true}, err
	}
	if ok {
		return FirstBloodResolution{}, nil
	}
	return FirstBloodResolution{Bonus: cfg.FirstBloodBonus, IsFirstBlood: true}, nil
}
