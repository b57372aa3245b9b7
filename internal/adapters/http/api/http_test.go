package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/sabre/internal/adapters/http/api"
	"github.com/okian/sabre/internal/adapters/repository"
	"github.com/okian/sabre/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies implements api.Dependencies for handler tests.
type mockDependencies struct {
	seen           map[string]bool
	enqueueSuccess bool
	enqueued       []model.SolveEvent

	challenges map[string]model.Challenge
	topN       []api.Standing
	standing   map[string]api.Standing
	solves     map[string]model.Solve // key: teamID + "/" + challengeID
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		seen:           make(map[string]bool),
		enqueueSuccess: true,
		challenges: map[string]model.Challenge{
			"chal-1": {ID: "chal-1", BasePoints: 100, Difficulty: model.DifficultyHard, Category: "crypto"},
		},
		standing: make(map[string]api.Standing),
		solves:   make(map[string]model.Solve),
	}
}

func (m *mockDependencies) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDependencies) Unrecord(_ context.Context, id string) {
	delete(m.seen, id)
}

func (m *mockDependencies) Size() int64 {
	return int64(len(m.seen))
}

func (m *mockDependencies) Enqueue(_ context.Context, ev model.SolveEvent) bool {
	if !m.enqueueSuccess {
		return false
	}
	m.enqueued = append(m.enqueued, ev)
	return true
}

func (m *mockDependencies) Challenge(_ context.Context, id string) (model.Challenge, error) {
	ch, ok := m.challenges[id]
	if !ok {
		return model.Challenge{}, repository.ErrNotFound
	}
	return ch, nil
}

func (m *mockDependencies) TopN(_ context.Context, n int) ([]api.Standing, error) {
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockDependencies) Standing(_ context.Context, teamID string) (api.Standing, error) {
	st, ok := m.standing[teamID]
	if !ok {
		return api.Standing{}, repository.ErrNotFound
	}
	return st, nil
}

func (m *mockDependencies) Breakdown(_ context.Context, teamID, challengeID string) (model.Solve, error) {
	solve, ok := m.solves[teamID+"/"+challengeID]
	if !ok {
		return model.Solve{}, repository.ErrNotFound
	}
	return solve, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, 100)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func validSolveBody() string {
	return `{
		"submission_id": "sub-1",
		"challenge_id": "chal-1",
		"team_id": "team-a",
		"team_size": 2,
		"solved_at": "` + time.Now().UTC().Format(time.RFC3339) + `"
	}`
}

func TestHandlePostSolve(t *testing.T) {
	Convey("Given the solves endpoint", t, func() {
		deps := newMockDependencies()
		mux := newTestMux(deps)

		Convey("When submitting a valid solve", func() {
			req := httptest.NewRequest(http.MethodPost, "/solves", strings.NewReader(validSolveBody()))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is accepted for async scoring", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)

				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.NewDecoder(w.Body).Decode(&ack), ShouldBeNil)
				So(ack.Status, ShouldEqual, "accepted")
				So(ack.Duplicate, ShouldBeFalse)

				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].SubmissionID, ShouldEqual, "sub-1")
				So(deps.enqueued[0].TeamSize, ShouldEqual, 2)
			})
		})

		Convey("When replaying the same submission id", func() {
			body := validSolveBody()
			first := httptest.NewRequest(http.MethodPost, "/solves", strings.NewReader(body))
			w1 := httptest.NewRecorder()
			mux.ServeHTTP(w1, first)
			So(w1.Code, ShouldEqual, http.StatusAccepted)

			second := httptest.NewRequest(http.MethodPost, "/solves", strings.NewReader(body))
			w2 := httptest.NewRecorder()
			mux.ServeHTTP(w2, second)

			Convey("Then the replay is answered as a duplicate and not enqueued", func() {
				So(w2.Code, ShouldEqual, http.StatusOK)

				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.NewDecoder(w2.Body).Decode(&ack), ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When the queue is saturated", func() {
			deps.enqueueSuccess = false
			req := httptest.NewRequest(http.MethodPost, "/solves", strings.NewReader(validSolveBody()))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the client gets backpressure and may retry the same id", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				// the id was unrecorded, so a retry is not a duplicate
				So(deps.seen["sub-1"], ShouldBeFalse)
			})
		})

		Convey("When the challenge id is unknown", func() {
			body := strings.Replace(validSolveBody(), "chal-1", "no-such", 1)
			req := httptest.NewRequest(http.MethodPost, "/solves", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is rejected without consuming the submission id", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(deps.seen["sub-1"], ShouldBeFalse)
			})
		})

		Convey("When the payload is malformed", func() {
			req := httptest.NewRequest(http.MethodPost, "/solves", strings.NewReader(`{not json`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When required fields are missing", func() {
			cases := []string{
				`{"challenge_id":"chal-1","team_id":"team-a","team_size":2,"solved_at":"2026-03-01T09:00:00Z"}`,
				`{"submission_id":"s","team_id":"team-a","team_size":2,"solved_at":"2026-03-01T09:00:00Z"}`,
				`{"submission_id":"s","challenge_id":"chal-1","team_size":2,"solved_at":"2026-03-01T09:00:00Z"}`,
				`{"submission_id":"s","challenge_id":"chal-1","team_id":"team-a","team_size":0,"solved_at":"2026-03-01T09:00:00Z"}`,
				`{"submission_id":"s","challenge_id":"chal-1","team_id":"team-a","team_size":2}`,
				`{"submission_id":"s","challenge_id":"chal-1","team_id":"team-a","team_size":2,"solved_at":"noon"}`,
			}
			for _, body := range cases {
				req := httptest.NewRequest(http.MethodPost, "/solves", strings.NewReader(body))
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest(http.MethodGet, "/solves", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHandleGetBreakdown(t *testing.T) {
	Convey("Given a persisted solve", t, func() {
		deps := newMockDependencies()
		deps.solves["team-a/chal-1"] = model.Solve{
			ID:          "solve-1",
			ChallengeID: "chal-1",
			TeamID:      "team-a",
			Breakdown: model.ScoreBreakdown{
				BasePoints:      100,
				DynamicPoints:   384,
				FirstBloodBonus: 50,
				SpeedBonus:      25,
				TotalPoints:     459,
				IsFirstBlood:    true,
			},
		}
		mux := newTestMux(deps)

		Convey("When fetching its breakdown", func() {
			req := httptest.NewRequest(http.MethodGet, "/solves/team-a/chal-1", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the full breakdown is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var solve model.Solve
				So(json.NewDecoder(w.Body).Decode(&solve), ShouldBeNil)
				So(solve.Breakdown.TotalPoints, ShouldEqual, 459)
				So(solve.Breakdown.IsFirstBlood, ShouldBeTrue)
			})
		})

		Convey("When no solve exists for the pair", func() {
			req := httptest.NewRequest(http.MethodGet, "/solves/team-b/chal-1", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path is malformed", func() {
			req := httptest.NewRequest(http.MethodGet, "/solves/team-a", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleGetScoreboard(t *testing.T) {
	Convey("Given a scoreboard with three teams", t, func() {
		deps := newMockDependencies()
		deps.topN = []api.Standing{
			{Rank: 1, TeamID: "team-c", Points: 500, Solves: 2},
			{Rank: 2, TeamID: "team-a", Points: 300, Solves: 1},
			{Rank: 3, TeamID: "team-b", Points: 300, Solves: 1},
		}
		mux := newTestMux(deps)

		Convey("When fetching the top 2", func() {
			req := httptest.NewRequest(http.MethodGet, "/scoreboard?limit=2", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then two standings come back in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var standings []api.Standing
				So(json.NewDecoder(w.Body).Decode(&standings), ShouldBeNil)
				So(standings, ShouldHaveLength, 2)
				So(standings[0].TeamID, ShouldEqual, "team-c")
			})
		})

		Convey("When the limit is missing or invalid", func() {
			for _, target := range []string{"/scoreboard", "/scoreboard?limit=0", "/scoreboard?limit=abc"} {
				req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the limit exceeds the configured maximum", func() {
			req := httptest.NewRequest(http.MethodGet, "/scoreboard?limit=1000", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleGetStanding(t *testing.T) {
	Convey("Given per-team standings", t, func() {
		deps := newMockDependencies()
		deps.standing["team-a"] = api.Standing{Rank: 2, TeamID: "team-a", Points: 300, Solves: 1}
		mux := newTestMux(deps)

		Convey("When fetching a known team", func() {
			req := httptest.NewRequest(http.MethodGet, "/standing/team-a", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then its row is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var st api.Standing
				So(json.NewDecoder(w.Body).Decode(&st), ShouldBeNil)
				So(st.Rank, ShouldEqual, 2)
				So(st.Points, ShouldEqual, 300)
			})
		})

		Convey("When fetching an unknown team", func() {
			req := httptest.NewRequest(http.MethodGet, "/standing/team-x", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the team id is empty", func() {
			req := httptest.NewRequest(http.MethodGet, "/standing/", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleStats(t *testing.T) {
	Convey("Given the stats endpoint", t, func() {
		deps := newMockDependencies()
		mux := newTestMux(deps)

		Convey("When fetching stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the provider's view is returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var stats map[string]interface{}
				So(json.NewDecoder(w.Body).Decode(&stats), ShouldBeNil)
				So(stats["started"], ShouldEqual, true)
			})
		})
	})
}

func TestHandleHealth(t *testing.T) {
	Convey("Given the health endpoint", t, func() {
		deps := newMockDependencies()
		mux := newTestMux(deps)

		Convey("When probing it", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it serves Prometheus metrics", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.Len(), ShouldBeGreaterThan, 0)
			})
		})
	})
}
