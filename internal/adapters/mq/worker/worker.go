// Package worker defines worker contracts for asynchronous scoring and awards.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sabre/internal/adapters/mq/queue"
	"github.com/okian/sabre/internal/adapters/repository"
	"github.com/okian/sabre/internal/domain/model"
	"github.com/okian/sabre/pkg/logger"
	"github.com/okian/sabre/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 20 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = model.SolveEvent

// Scorer computes a full score breakdown for a solve event.
type Scorer interface {
	Score(ctx context.Context, ev model.SolveEvent, ch model.Challenge) model.ScoreBreakdown
}

// Challenges resolves challenge definitions by id.
type Challenges interface {
	Challenge(ctx context.Context, id string) (model.Challenge, error)
}

// Awarder persists scored solves and reconciles first-blood awards.
type Awarder interface {
	ConditionalInsert(ctx context.Context, solve model.Solve) error
	EarliestSolve(ctx context.Context, challengeID string) (model.Solve, error)
	StripFirstBlood(ctx context.Context, teamID, challengeID string) (model.Solve, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes solve events and writes awards using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining events before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing solve events.
type InMemoryWorker struct {
	queue      Queue
	scorer     Scorer
	challenges Challenges
	awarder    Awarder
	name       string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, scorer Scorer, challenges Challenges, awarder Awarder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      queue,
		scorer:     scorer,
		challenges: challenges,
		awarder:    awarder,
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				// Channel closed, worker should stop.
				return
			}

			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing solve event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent scores one solve event and persists the award.
//
// The award runs in two phases. Phase one computes a candidate breakdown
// from the state visible at scoring time and attempts a conditional
// insert; the store rejects a second solve for the same (team, challenge)
// pair with ErrDuplicate, so at most one insert per pair ever succeeds.
// Phase two re-reads the challenge's earliest solve after the insert: if
// another team's solve landed first, the candidate first-blood bonus is
// stripped from the record we just wrote. A challenge can therefore never
// end up with two first bloods, regardless of interleaving.
func (w *InMemoryWorker) processEvent(ctx context.Context, event queue.Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordAwardLatency(float64(time.Since(start).Milliseconds()))
	}()

	// A missing challenge snapshot is an input defect, not a reason to
	// drop a verified solve: score with the zero-value challenge and its
	// neutral defaults instead.
	ch, err := w.challenges.Challenge(ctx, event.ChallengeID)
	if err != nil {
		metrics.RecordDegradedScore()
		metrics.RecordErrorByComponent("worker", "unknown_challenge")
		w.logger.Warn(ctx, "challenge lookup failed, scoring with neutral defaults",
			logger.String("submission_id", event.SubmissionID),
			logger.String("challenge_id", event.ChallengeID),
			logger.Error(err),
		)
		ch = model.Challenge{ID: event.ChallengeID}
	}

	scoreStart := time.Now()
	breakdown := w.scorer.Score(ctx, event, ch)
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Milliseconds()))

	solve := model.Solve{
		ID:          uuid.NewString(),
		ChallengeID: event.ChallengeID,
		TeamID:      event.TeamID,
		TeamSize:    event.TeamSize,
		SolvedAt:    event.SolvedAt,
		Breakdown:   breakdown,
	}

	if err := w.awarder.ConditionalInsert(ctx, solve); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// The team already solved this challenge; the resubmission
			// awards nothing and the existing record stands.
			metrics.RecordSolveResubmitted()
			w.logger.Debug(ctx, "team already solved challenge, ignoring",
				logger.String("team_id", event.TeamID),
				logger.String("challenge_id", event.ChallengeID),
			)
			return nil
		}
		metrics.RecordStoreError()
		metrics.RecordErrorByComponent("worker", "store_error")
		w.logger.Error(ctx, "solve insert failed",
			logger.String("submission_id", event.SubmissionID),
			logger.Error(err),
		)
		return fmt.Errorf("solve insert failed: %w", err)
	}

	metrics.RecordSolveAccepted()

	if breakdown.IsFirstBlood {
		w.confirmFirstBlood(ctx, event)
	}

	return nil
}

// confirmFirstBlood re-checks the earliest solve after a candidate
// first-blood insert and demotes the record if another team beat it.
func (w *InMemoryWorker) confirmFirstBlood(ctx context.Context, event queue.Event) {
	earliest, err := w.awarder.EarliestSolve(ctx, event.ChallengeID)
	if err != nil {
		// Our own insert just succeeded, so this should be unreachable.
		metrics.RecordErrorByComponent("worker", "first_blood_confirm")
		w.logger.Warn(ctx, "first-blood confirmation read failed",
			logger.String("challenge_id", event.ChallengeID),
			logger.Error(err),
		)
		return
	}

	if earliest.TeamID == event.TeamID {
		metrics.RecordFirstBlood()
		w.logger.Info(ctx, "first blood",
			logger.String("team_id", event.TeamID),
			logger.String("challenge_id", event.ChallengeID),
		)
		return
	}

	if _, err := w.awarder.StripFirstBlood(ctx, event.TeamID, event.ChallengeID); err != nil {
		metrics.RecordErrorByComponent("worker", "first_blood_demote")
		w.logger.Error(ctx, "first-blood demotion failed",
			logger.String("team_id", event.TeamID),
			logger.String("challenge_id", event.ChallengeID),
			logger.Error(err),
		)
		return
	}

	metrics.RecordFirstBloodDemoted()
	w.logger.Info(ctx, "first-blood bonus demoted, earlier solve exists",
		logger.String("team_id", event.TeamID),
		logger.String("challenge_id", event.ChallengeID),
		logger.String("earliest_team_id", earliest.TeamID),
	)
}

// Pool manages multiple workers.
type Pool struct {
	workers    []*InMemoryWorker
	queue      Queue
	scorer     Scorer
	challenges Challenges
	awarder    Awarder

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, scorer Scorer, challenges Challenges, awarder Awarder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:    make([]*InMemoryWorker, workerCount),
		queue:      queue,
		scorer:     scorer,
		challenges: challenges,
		awarder:    awarder,
		shutdown:   make(chan struct{}),
		logger:     logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			scorer,
			challenges,
			awarder,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new events.
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
