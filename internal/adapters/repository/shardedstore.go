package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/sabre/internal/domain/model"
	"github.com/okian/sabre/pkg/metrics"
)

// Sharded, in-memory Store implementation.
//
// Solves are sharded by challenge id so that the uniqueness check, the
// earliest-solve index and the solve count for one challenge live under
// a single lock: the conditional insert is atomic with respect to every
// concurrent submission for that challenge. Standings are a separate
// index updated under its own lock after a successful insert.
//
// Scoreboard ordering: points DESC, then earliest last-solve ASC (the
// team that reached its total first ranks higher), then team id ASC.

const defaultShardCount = 8

// challengeSolves is everything the store tracks for one challenge.
type challengeSolves struct {
	byTeam map[string]model.Solve

	// earliestTeam holds the first blood: the first insert that landed
	// for the challenge. It is never reassigned. SolvedAt is
	// client-supplied and cannot be trusted to order commits; if a
	// later insert with an earlier timestamp could displace the slot,
	// a team whose record was already confirmed would keep its bonus
	// alongside the new holder.
	earliestTeam string
}

type shard struct {
	mu         sync.RWMutex
	challenges map[string]*challengeSolves
}

// teamTotals accumulates a team's scoreboard row.
type teamTotals struct {
	points    int
	solves    int
	lastSolve time.Time
}

// ShardedStore implements Store.
type ShardedStore struct {
	shards     []*shard
	shardCount int

	standingsMu sync.RWMutex
	teams       map[string]*teamTotals
	solveCount  int
}

// Option applies a configuration option to the ShardedStore.
type Option func(*ShardedStore)

// WithShardCount sets the number of shards.
func WithShardCount(n int) Option {
	return func(s *ShardedStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// NewShardedStore creates an empty solve store.
func NewShardedStore(_ context.Context, opts ...Option) *ShardedStore {
	s := &ShardedStore{
		shardCount: defaultShardCount,
		teams:      make(map[string]*teamTotals),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{challenges: make(map[string]*challengeSolves)}
	}
	return s
}

func (s *ShardedStore) shardFor(challengeID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(challengeID))
	return s.shards[int(h.Sum32())%s.shardCount]
}

// ConditionalInsert persists a solve iff none exists for (team, challenge).
func (s *ShardedStore) ConditionalInsert(_ context.Context, solve model.Solve) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreInsertLatency(float64(time.Since(start).Milliseconds()))
	}()

	sh := s.shardFor(solve.ChallengeID)
	sh.mu.Lock()
	bucket, ok := sh.challenges[solve.ChallengeID]
	if !ok {
		bucket = &challengeSolves{byTeam: make(map[string]model.Solve)}
		sh.challenges[solve.ChallengeID] = bucket
	}
	if _, exists := bucket.byTeam[solve.TeamID]; exists {
		sh.mu.Unlock()
		return ErrDuplicate
	}
	bucket.byTeam[solve.TeamID] = solve
	if bucket.earliestTeam == "" {
		bucket.earliestTeam = solve.TeamID
	}
	sh.mu.Unlock()

	s.standingsMu.Lock()
	tt, ok := s.teams[solve.TeamID]
	if !ok {
		tt = &teamTotals{}
		s.teams[solve.TeamID] = tt
	}
	tt.points += solve.Breakdown.TotalPoints
	tt.solves++
	if solve.SolvedAt.After(tt.lastSolve) {
		tt.lastSolve = solve.SolvedAt
	}
	s.solveCount++
	teamCount, solveCount := len(s.teams), s.solveCount
	s.standingsMu.Unlock()

	metrics.UpdateTotalTeams(teamCount)
	metrics.UpdateTotalSolves(solveCount)
	return nil
}

// GetSolve returns the persisted solve for a team and challenge.
func (s *ShardedStore) GetSolve(_ context.Context, teamID, challengeID string) (model.Solve, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	sh := s.shardFor(challengeID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if bucket, ok := sh.challenges[challengeID]; ok {
		if solve, ok := bucket.byTeam[teamID]; ok {
			return solve, nil
		}
	}
	return model.Solve{}, ErrNotFound
}

// CountSolves returns the number of accepted solves for a challenge.
func (s *ShardedStore) CountSolves(_ context.Context, challengeID string) (int, error) {
	sh := s.shardFor(challengeID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if bucket, ok := sh.challenges[challengeID]; ok {
		return len(bucket.byTeam), nil
	}
	return 0, nil
}

// EarliestSolve returns the first accepted solve of a challenge, in
// commit order.
func (s *ShardedStore) EarliestSolve(_ context.Context, challengeID string) (model.Solve, error) {
	sh := s.shardFor(challengeID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	bucket, ok := sh.challenges[challengeID]
	if !ok || bucket.earliestTeam == "" {
		return model.Solve{}, ErrNotFound
	}
	return bucket.byTeam[bucket.earliestTeam], nil
}

// StripFirstBlood removes the first-blood bonus from a persisted solve.
func (s *ShardedStore) StripFirstBlood(_ context.Context, teamID, challengeID string) (model.Solve, error) {
	sh := s.shardFor(challengeID)
	sh.mu.Lock()
	bucket, ok := sh.challenges[challengeID]
	if !ok {
		sh.mu.Unlock()
		return model.Solve{}, ErrNotFound
	}
	solve, ok := bucket.byTeam[teamID]
	if !ok {
		sh.mu.Unlock()
		return model.Solve{}, ErrNotFound
	}
	if !solve.Breakdown.IsFirstBlood {
		sh.mu.Unlock()
		return solve, nil
	}
	bonus := solve.Breakdown.FirstBloodBonus
	solve.Breakdown.IsFirstBlood = false
	solve.Breakdown.FirstBloodBonus = 0
	solve.Breakdown.TotalPoints -= bonus
	bucket.byTeam[teamID] = solve
	sh.mu.Unlock()

	s.standingsMu.Lock()
	if tt, ok := s.teams[teamID]; ok {
		tt.points -= bonus
	}
	s.standingsMu.Unlock()

	return solve, nil
}

// sortedStandings builds the full scoreboard under a read lock.
func (s *ShardedStore) sortedStandings() []Standing {
	s.standingsMu.RLock()
	rows := make([]Standing, 0, len(s.teams))
	for teamID, tt := range s.teams {
		rows = append(rows, Standing{
			TeamID:      teamID,
			Points:      tt.points,
			Solves:      tt.solves,
			LastSolveAt: tt.lastSolve,
		})
	}
	s.standingsMu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if !rows[i].LastSolveAt.Equal(rows[j].LastSolveAt) {
			return rows[i].LastSolveAt.Before(rows[j].LastSolveAt)
		}
		return rows[i].TeamID < rows[j].TeamID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// TopN returns the top-N standings.
func (s *ShardedStore) TopN(_ context.Context, n int) ([]Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows := s.sortedStandings()
	if n < len(rows) {
		rows = rows[:n]
	}
	return rows, nil
}

// Standing returns one team's scoreboard row.
func (s *ShardedStore) Standing(_ context.Context, teamID string) (Standing, error) {
	for _, row := range s.sortedStandings() {
		if row.TeamID == teamID {
			return row, nil
		}
	}
	return Standing{}, ErrNotFound
}

// SolvesByTeam returns all solves of a team, newest first.
func (s *ShardedStore) SolvesByTeam(_ context.Context, teamID string) ([]model.Solve, error) {
	var solves []model.Solve
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, bucket := range sh.challenges {
			if solve, ok := bucket.byTeam[teamID]; ok {
				solves = append(solves, solve)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(solves, func(i, j int) bool {
		if !solves[i].SolvedAt.Equal(solves[j].SolvedAt) {
			return solves[i].SolvedAt.After(solves[j].SolvedAt)
		}
		return solves[i].ChallengeID < solves[j].ChallengeID
	})
	return solves, nil
}

// TeamCount returns the number of teams with at least one solve.
func (s *ShardedStore) TeamCount(_ context.Context) int {
	s.standingsMu.RLock()
	defer s.standingsMu.RUnlock()
	return len(s.teams)
}

// SolveCount returns the total number of persisted solves.
func (s *ShardedStore) SolveCount(_ context.Context) int {
	s.standingsMu.RLock()
	defer s.standingsMu.RUnlock()
	return s.solveCount
}
