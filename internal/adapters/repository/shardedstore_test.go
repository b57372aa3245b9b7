package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sabre/internal/adapters/repository"
	"github.com/okian/sabre/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newSolve(teamID, challengeID string, points int, solvedAt time.Time, firstBlood bool) model.Solve {
	bonus := 0
	if firstBlood {
		bonus = 50
	}
	return model.Solve{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		TeamID:      teamID,
		TeamSize:    2,
		SolvedAt:    solvedAt,
		Breakdown: model.ScoreBreakdown{
			BasePoints:       100,
			DynamicPoints:    points - bonus,
			FirstBloodBonus:  bonus,
			TeamSizeModifier: 1.0,
			TotalPoints:      points,
			IsFirstBlood:     firstBlood,
			SolvedAt:         solvedAt,
		},
	}
}

func TestShardedStoreConditionalInsert(t *testing.T) {
	Convey("Given an empty sharded store", t, func() {
		ctx := context.Background()
		store := repository.NewShardedStore(ctx)
		now := time.Now()

		Convey("When a team solves a challenge", func() {
			err := store.ConditionalInsert(ctx, newSolve("team-a", "chal-1", 434, now, true))

			Convey("Then the solve is persisted and readable", func() {
				So(err, ShouldBeNil)

				solve, err := store.GetSolve(ctx, "team-a", "chal-1")
				So(err, ShouldBeNil)
				So(solve.Breakdown.TotalPoints, ShouldEqual, 434)
				So(solve.Breakdown.IsFirstBlood, ShouldBeTrue)

				count, err := store.CountSolves(ctx, "chal-1")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})

			Convey("And a second insert by the same team is rejected", func() {
				err := store.ConditionalInsert(ctx, newSolve("team-a", "chal-1", 200, now.Add(time.Minute), false))
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)

				count, _ := store.CountSolves(ctx, "chal-1")
				So(count, ShouldEqual, 1)
			})

			Convey("And a different team solving the same challenge is accepted", func() {
				So(store.ConditionalInsert(ctx, newSolve("team-b", "chal-1", 200, now.Add(time.Minute), false)), ShouldBeNil)

				count, _ := store.CountSolves(ctx, "chal-1")
				So(count, ShouldEqual, 2)
			})
		})

		Convey("When the same team races itself with concurrent inserts", func() {
			const goroutines = 50
			var accepted atomic.Int64
			var wg sync.WaitGroup

			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					s := newSolve("team-a", "chal-1", 100+i, now, false)
					if store.ConditionalInsert(ctx, s) == nil {
						accepted.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one insert wins", func() {
				So(accepted.Load(), ShouldEqual, 1)
				count, _ := store.CountSolves(ctx, "chal-1")
				So(count, ShouldEqual, 1)
			})
		})

		Convey("When reading a solve that does not exist", func() {
			_, err := store.GetSolve(ctx, "team-x", "chal-1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestShardedStoreEarliestSolve(t *testing.T) {
	Convey("Given solves landing at different times", t, func() {
		ctx := context.Background()
		store := repository.NewShardedStore(ctx)
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		Convey("When an unsolved challenge is queried", func() {
			_, err := store.EarliestSolve(ctx, "chal-1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a later solve arrives after an earlier one", func() {
			So(store.ConditionalInsert(ctx, newSolve("team-a", "chal-1", 100, base, true)), ShouldBeNil)
			So(store.ConditionalInsert(ctx, newSolve("team-b", "chal-1", 100, base.Add(time.Second), false)), ShouldBeNil)

			earliest, err := store.EarliestSolve(ctx, "chal-1")
			So(err, ShouldBeNil)
			So(earliest.TeamID, ShouldEqual, "team-a")
		})

		Convey("When two solves carry the same timestamp", func() {
			So(store.ConditionalInsert(ctx, newSolve("team-a", "chal-1", 100, base, true)), ShouldBeNil)
			So(store.ConditionalInsert(ctx, newSolve("team-b", "chal-1", 100, base, false)), ShouldBeNil)

			Convey("Then the first insert keeps the earliest slot", func() {
				earliest, err := store.EarliestSolve(ctx, "chal-1")
				So(err, ShouldBeNil)
				So(earliest.TeamID, ShouldEqual, "team-a")
			})
		})

		Convey("When a later insert carries an earlier timestamp", func() {
			So(store.ConditionalInsert(ctx, newSolve("team-b", "chal-1", 100, base.Add(time.Second), true)), ShouldBeNil)
			So(store.ConditionalInsert(ctx, newSolve("team-a", "chal-1", 100, base, true)), ShouldBeNil)

			Convey("Then the first insert still holds the earliest slot", func() {
				earliest, err := store.EarliestSolve(ctx, "chal-1")
				So(err, ShouldBeNil)
				So(earliest.TeamID, ShouldEqual, "team-b")
			})
		})
	})
}

func TestShardedStoreStripFirstBlood(t *testing.T) {
	Convey("Given a solve holding a first-blood bonus", t, func() {
		ctx := context.Background()
		store := repository.NewShardedStore(ctx)
		now := time.Now()

		So(store.ConditionalInsert(ctx, newSolve("team-a", "chal-1", 434, now, true)), ShouldBeNil)

		Convey("When the bonus is stripped", func() {
			stripped, err := store.StripFirstBlood(ctx, "team-a", "chal-1")

			Convey("Then the record loses the bonus and only the bonus", func() {
				So(err, ShouldBeNil)
				So(stripped.Breakdown.IsFirstBlood, ShouldBeFalse)
				So(stripped.Breakdown.FirstBloodBonus, ShouldEqual, 0)
				So(stripped.Breakdown.TotalPoints, ShouldEqual, 384)
			})

			Convey("And the standings reflect the reduced total", func() {
				standing, err := store.Standing(ctx, "team-a")
				So(err, ShouldBeNil)
				So(standing.Points, ShouldEqual, 384)
			})

			Convey("And stripping again is a no-op", func() {
				again, err := store.StripFirstBlood(ctx, "team-a", "chal-1")
				So(err, ShouldBeNil)
				So(again.Breakdown.TotalPoints, ShouldEqual, 384)

				standing, _ := store.Standing(ctx, "team-a")
				So(standing.Points, ShouldEqual, 384)
			})
		})

		Convey("When stripping a solve that does not exist", func() {
			_, err := store.StripFirstBlood(ctx, "team-x", "chal-1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestShardedStoreStandings(t *testing.T) {
	Convey("Given three teams with different records", t, func() {
		ctx := context.Background()
		store := repository.NewShardedStore(ctx, repository.WithShardCount(4))
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		// team-a: 300 points, finished early
		So(store.ConditionalInsert(ctx, newSolve("team-a", "chal-1", 300, base, false)), ShouldBeNil)
		// team-b: 300 points, finished later
		So(store.ConditionalInsert(ctx, newSolve("team-b", "chal-2", 300, base.Add(time.Hour), false)), ShouldBeNil)
		// team-c: 500 points across two solves
		So(store.ConditionalInsert(ctx, newSolve("team-c", "chal-1", 200, base.Add(time.Minute), false)), ShouldBeNil)
		So(store.ConditionalInsert(ctx, newSolve("team-c", "chal-2", 300, base.Add(2*time.Hour), false)), ShouldBeNil)

		Convey("When fetching the full scoreboard", func() {
			standings, err := store.TopN(ctx, 10)

			Convey("Then teams are ordered by points, then earlier last solve", func() {
				So(err, ShouldBeNil)
				So(standings, ShouldHaveLength, 3)

				So(standings[0].TeamID, ShouldEqual, "team-c")
				So(standings[0].Rank, ShouldEqual, 1)
				So(standings[0].Points, ShouldEqual, 500)
				So(standings[0].Solves, ShouldEqual, 2)

				// tie on points: team-a reached 300 before team-b
				So(standings[1].TeamID, ShouldEqual, "team-a")
				So(standings[2].TeamID, ShouldEqual, "team-b")
			})
		})

		Convey("When fetching fewer rows than teams", func() {
			standings, err := store.TopN(ctx, 1)
			So(err, ShouldBeNil)
			So(standings, ShouldHaveLength, 1)
			So(standings[0].TeamID, ShouldEqual, "team-c")
		})

		Convey("When asking for a non-positive limit", func() {
			_, err := store.TopN(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("When fetching a single team's standing", func() {
			standing, err := store.Standing(ctx, "team-a")
			So(err, ShouldBeNil)
			So(standing.Rank, ShouldEqual, 2)
			So(standing.Points, ShouldEqual, 300)

			_, err = store.Standing(ctx, "team-none")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When listing one team's solves", func() {
			solves, err := store.SolvesByTeam(ctx, "team-c")
			So(err, ShouldBeNil)
			So(solves, ShouldHaveLength, 2)
			// newest first
			So(solves[0].ChallengeID, ShouldEqual, "chal-2")
			So(solves[1].ChallengeID, ShouldEqual, "chal-1")
		})

		Convey("When counting teams and solves", func() {
			So(store.TeamCount(ctx), ShouldEqual, 3)
			So(store.SolveCount(ctx), ShouldEqual, 4)
		})
	})
}

func TestShardedStoreParallelLoad(t *testing.T) {
	Convey("Given many teams solving many challenges concurrently", t, func() {
		ctx := context.Background()
		store := repository.NewShardedStore(ctx, repository.WithShardCount(16))
		base := time.Now()

		const teams = 20
		const challenges = 10
		var wg sync.WaitGroup

		for ti := 0; ti < teams; ti++ {
			wg.Add(1)
			go func(ti int) {
				defer wg.Done()
				for ci := 0; ci < challenges; ci++ {
					s := newSolve(
						fmt.Sprintf("team-%02d", ti),
						fmt.Sprintf("chal-%02d", ci),
						100,
						base.Add(time.Duration(ti)*time.Millisecond),
						false,
					)
					_ = store.ConditionalInsert(ctx, s)
				}
			}(ti)
		}
		wg.Wait()

		Convey("Then every solve is accounted for exactly once", func() {
			So(store.SolveCount(ctx), ShouldEqual, teams*challenges)
			So(store.TeamCount(ctx), ShouldEqual, teams)

			for ci := 0; ci < challenges; ci++ {
				count, err := store.CountSolves(ctx, fmt.Sprintf("chal-%02d", ci))
				So(err, ShouldBeNil)
				So(count, ShouldEqual, teams)
			}
		})

		Convey("And each challenge has one stable earliest solve", func() {
			earliest, err := store.EarliestSolve(ctx, "chal-00")
			So(err, ShouldBeNil)
			So(earliest.TeamID, ShouldStartWith, "team-")

			again, err := store.EarliestSolve(ctx, "chal-00")
			So(err, ShouldBeNil)
			So(again.TeamID, ShouldEqual, earliest.TeamID)
		})
	})
}
