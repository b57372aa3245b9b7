// Package directory holds the challenge catalog consulted during scoring.
//
// Challenges are registered up front (typically from configuration) and
// looked up by id on every submission. The catalog is read-mostly, so a
// plain RWMutex-guarded map is enough.
package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/sabre/internal/domain/model"
)

// InMemoryDirectory implements an in-memory challenge catalog.
type InMemoryDirectory struct {
	mu         sync.RWMutex
	challenges map[string]model.Challenge
}

// NewInMemoryDirectory creates an empty challenge directory.
func NewInMemoryDirectory(_ context.Context) *InMemoryDirectory {
	return &InMemoryDirectory{
		challenges: make(map[string]model.Challenge),
	}
}

// Register adds or replaces a challenge definition.
func (d *InMemoryDirectory) Register(_ context.Context, ch model.Challenge) error {
	if ch.ID == "" {
		return ErrInvalidChallenge
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.challenges[ch.ID] = ch
	return nil
}

// Challenge returns the challenge definition for an id.
func (d *InMemoryDirectory) Challenge(_ context.Context, id string) (model.Challenge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.challenges[id]
	if !ok {
		return model.Challenge{}, ErrUnknownChallenge
	}
	return ch, nil
}

// List returns all registered challenges ordered by id.
func (d *InMemoryDirectory) List(_ context.Context) []model.Challenge {
	d.mu.RLock()
	out := make([]model.Challenge, 0, len(d.challenges))
	for _, ch := range d.challenges {
		out = append(out, ch)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered challenges.
func (d *InMemoryDirectory) Count(_ context.Context) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.challenges)
}
