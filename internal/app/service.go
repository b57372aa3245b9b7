// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/okian/sabre/internal/adapters/directory"
	solvequeue "github.com/okian/sabre/internal/adapters/mq/queue"
	workerpool "github.com/okian/sabre/internal/adapters/mq/worker"
	"github.com/okian/sabre/internal/adapters/repository"
	"github.com/okian/sabre/internal/domain/dedupe"
	"github.com/okian/sabre/internal/domain/model"
	"github.com/okian/sabre/internal/domain/scoring"
	"github.com/okian/sabre/pkg/logger"
	"github.com/okian/sabre/pkg/metrics"
)

// configSource hands the aggregator a consistent snapshot of the
// scoring knobs. The snapshot is fixed at service start; a later
// admin-config layer can replace this with a live source.
type configSource struct {
	mu  sync.RWMutex
	cfg scoring.Config
}

func (c *configSource) CurrentConfig(_ context.Context) (scoring.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg, nil
}

func (c *configSource) update(cfg scoring.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// solveSource adapts the repository's ErrNotFound convention to the
// (solve, ok, err) shape the scoring package expects.
type solveSource struct {
	store repository.Store
}

func (s *solveSource) CountSolves(ctx context.Context, challengeID string) (int, error) {
	return s.store.CountSolves(ctx, challengeID)
}

func (s *solveSource) EarliestSolve(ctx context.Context, challengeID string) (model.Solve, bool, error) {
	solve, err := s.store.EarliestSolve(ctx, challengeID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Solve{}, false, nil
	}
	if err != nil {
		return model.Solve{}, false, err
	}
	return solve, true, nil
}

// teamSource reports the eligible-team denominator for solve-rate
// rarity: a fixed registration count when configured, otherwise the
// number of teams the store has seen.
type teamSource struct {
	fixed int
	store repository.Store
}

func (t *teamSource) EligibleTeamCount(ctx context.Context) (int, error) {
	if t.fixed > 0 {
		return t.fixed, nil
	}
	return t.store.TeamCount(ctx), nil
}

// Service implements the API dependencies for the scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	solveQueue solvequeue.Queue
	challenges *directory.InMemoryDirectory
	aggregator *scoring.Aggregator
	workerPool *workerpool.Pool
	scoringCfg *configSource

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	shardCount    int
	eligibleTeams int
	scoring       scoring.Config
	seed          []model.Challenge

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the solve event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the number of shards in the solve store.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithEligibleTeams fixes the team count used for rarity scaling.
// Zero means "use the store's observed team count".
func WithEligibleTeams(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.eligibleTeams = count
		}
	}
}

// WithScoringConfig sets the competition scoring knobs.
func WithScoringConfig(cfg scoring.Config) Option {
	return func(s *Service) {
		s.scoring = cfg
	}
}

// WithChallenges seeds the challenge directory at startup.
func WithChallenges(challenges []model.Challenge) Option {
	return func(s *Service) {
		s.seed = challenges
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   100000,
		dedupeSize:  50000,
		shardCount:  8,
		scoring:     scoring.DefaultConfig(),
		stopCh:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting scoring service...")

	s.store = repository.NewShardedStore(ctx,
		repository.WithShardCount(s.shardCount),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.solveQueue = solvequeue.NewInMemoryQueue(
		solvequeue.WithCapacity(s.queueSize),
		solvequeue.WithBufferSize(s.queueSize),
	)

	s.challenges = directory.NewInMemoryDirectory(ctx)
	for _, ch := range s.seed {
		if err := s.challenges.Register(ctx, ch); err != nil {
			return err
		}
	}

	s.scoringCfg = &configSource{cfg: s.scoring}
	s.aggregator = scoring.NewAggregator(
		s.scoringCfg,
		&solveSource{store: s.store},
		&teamSource{fixed: s.eligibleTeams, store: s.store},
		scoring.WithLogger(s.logger.Named("scoring")),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.solveQueue, s.aggregator, s.challenges, s.store)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("challenges", s.challenges.Count(ctx)),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping scoring service...")

	// Close the queue first so workers drain remaining events and exit.
	if q, ok := s.solveQueue.(*solvequeue.InMemoryQueue); ok {
		_ = q.Close()
	}

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "scoring service stopped")
}

// SeenAndRecord atomically checks if a submission id was seen and records
// it if not. Returns true if the submission was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordSolveDuplicate()
	}
	return seen
}

// Unrecord removes a submission id from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Enqueue submits a solve event for asynchronous scoring. Returns false
// when the queue is full or closed; the caller should then Unrecord the
// submission id so the client can retry.
func (s *Service) Enqueue(ctx context.Context, ev model.SolveEvent) bool {
	metrics.RecordSolveSubmitted()
	ok := s.solveQueue.Enqueue(ctx, ev)
	if ok {
		metrics.UpdateQueueSize(s.solveQueue.Len(ctx))
	}
	return ok
}

// Challenge resolves a challenge definition by id.
func (s *Service) Challenge(ctx context.Context, id string) (model.Challenge, error) {
	return s.challenges.Challenge(ctx, id)
}

// RegisterChallenge adds or replaces a challenge definition at runtime.
func (s *Service) RegisterChallenge(ctx context.Context, ch model.Challenge) error {
	return s.challenges.Register(ctx, ch)
}

// Challenges lists all registered challenges ordered by id.
func (s *Service) Challenges(ctx context.Context) []model.Challenge {
	return s.challenges.List(ctx)
}

// UpdateScoringConfig swaps the scoring knobs. In-flight scores keep
// the snapshot they started with.
func (s *Service) UpdateScoringConfig(cfg scoring.Config) {
	s.scoringCfg.update(cfg)
}

// TopN returns the top N scoreboard standings.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Standing, error) {
	return s.store.TopN(ctx, n)
}

// Standing returns the scoreboard row for a team.
func (s *Service) Standing(ctx context.Context, teamID string) (repository.Standing, error) {
	return s.store.Standing(ctx, teamID)
}

// Breakdown returns the persisted solve, with its full score breakdown,
// for a team and challenge.
func (s *Service) Breakdown(ctx context.Context, teamID, challengeID string) (model.Solve, error) {
	return s.store.GetSolve(ctx, teamID, challengeID)
}

// SolvesByTeam returns all solves of a team, newest first.
func (s *Service) SolvesByTeam(ctx context.Context, teamID string) ([]model.Solve, error) {
	return s.store.SolvesByTeam(ctx, teamID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.solveQueue.Len(ctx)
		teamCount := s.store.TeamCount(ctx)
		solveCount := s.store.SolveCount(ctx)

		stats["queueLength"] = queueLen
		stats["totalTeams"] = teamCount
		stats["totalSolves"] = solveCount
		stats["challenges"] = s.challenges.Count(ctx)

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalTeams(teamCount)
		metrics.UpdateTotalSolves(solveCount)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
