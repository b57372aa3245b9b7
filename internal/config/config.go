// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/sabre/internal/domain/model"
	"github.com/okian/sabre/internal/domain/scoring"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SolveQueueSize bounds the in-memory solve event queue.
	SolveQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the submission deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the solve store.
	ShardCount int `koanf:"shard_count"`

	// MaxScoreboardLimit caps GET /scoreboard?limit.
	MaxScoreboardLimit int `koanf:"max_scoreboard_limit"`

	// EligibleTeams fixes the registered-team count used for solve-rate
	// rarity. When 0, the store's observed team count is used instead.
	EligibleTeams int `koanf:"eligible_teams"`

	// Scoring holds the competition-wide award knobs.
	Scoring scoring.Config `koanf:"scoring"`

	// Challenges seeds the challenge directory at startup.
	Challenges []ChallengeSpec `koanf:"challenges"`
}

// ChallengeSpec describes one challenge in configuration form.
// ReleasedAt is an RFC3339 timestamp; empty means "released at start",
// which disables the speed bonus for the challenge.
type ChallengeSpec struct {
	ID         string `koanf:"id"`
	BasePoints int    `koanf:"base_points"`
	Difficulty string `koanf:"difficulty"`
	Category   string `koanf:"category"`
	Daily      bool   `koanf:"daily"`
	ReleasedAt string `koanf:"released_at"`
}

// Challenge converts the configured entry into a domain challenge.
func (s ChallengeSpec) Challenge() (model.Challenge, error) {
	ch := model.Challenge{
		ID:         s.ID,
		BasePoints: s.BasePoints,
		Difficulty: model.Difficulty(s.Difficulty),
		Category:   s.Category,
		Daily:      s.Daily,
	}
	if s.ReleasedAt != "" {
		t, err := time.Parse(time.RFC3339, s.ReleasedAt)
		if err != nil {
			return model.Challenge{}, fmt.Errorf("%w: challenge %s released_at: %v", ErrInvalidConfig, s.ID, err)
		}
		ch.ReleasedAt = t
	}
	return ch, nil
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		SolveQueueSize:     100_000,
		WorkerCount:        runtime.NumCPU() * 10,
		DedupeSize:         500_000,
		ShardCount:         8,
		MaxScoreboardLimit: 100,
		EligibleTeams:      0,
		Scoring:            scoring.DefaultConfig(),
	}
}
