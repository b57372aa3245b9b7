package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/sabre/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Test empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Test enqueue
	ev1 := model.SolveEvent{SubmissionID: "sub1", ChallengeID: "chal1", TeamID: "team1", TeamSize: 2, SolvedAt: time.Now()}
	if !q.Enqueue(ctx, ev1) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Test dequeue
	eventChan := q.Dequeue(ctx)
	ev := <-eventChan
	if ev.SubmissionID != "sub1" {
		t.Errorf("expected sub1, got %v", ev.SubmissionID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	ev1 := model.SolveEvent{SubmissionID: "sub1", ChallengeID: "chal1", TeamID: "team1", TeamSize: 1}
	ev2 := model.SolveEvent{SubmissionID: "sub2", ChallengeID: "chal1", TeamID: "team2", TeamSize: 1}
	ev3 := model.SolveEvent{SubmissionID: "sub3", ChallengeID: "chal1", TeamID: "team3", TeamSize: 1}

	if !q.Enqueue(ctx, ev1) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, ev2) {
		t.Error("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, ev3) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CapacityAboveBufferSize(t *testing.T) {
	// The channel buffer must grow to the configured capacity, or the
	// non-blocking send would reject events the capacity still allows.
	q := NewInMemoryQueue(WithCapacity(16), WithBufferSize(4))
	ctx := context.Background()

	for i := 0; i < 16; i++ {
		ev := model.SolveEvent{SubmissionID: fmt.Sprintf("sub%d", i), ChallengeID: "chal1", TeamID: fmt.Sprintf("team%d", i), TeamSize: 1}
		if !q.Enqueue(ctx, ev) {
			t.Fatalf("expected enqueue %d of 16 to succeed", i+1)
		}
	}

	if l := q.Len(ctx); l != 16 {
		t.Errorf("expected length 16, got %d", l)
	}

	ev := model.SolveEvent{SubmissionID: "sub16", ChallengeID: "chal1", TeamID: "team16", TeamSize: 1}
	if q.Enqueue(ctx, ev) {
		t.Error("expected enqueue to fail at capacity")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numGoroutines := 10
	numEvents := 100

	// Start producer goroutines
	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numEvents; j++ {
				ev := model.SolveEvent{
					SubmissionID: fmt.Sprintf("sub%d_%d", id, j),
					ChallengeID:  fmt.Sprintf("chal%d", j%5),
					TeamID:       fmt.Sprintf("team%d", id),
					TeamSize:     2,
				}
				for !q.Enqueue(ctx, ev) {
					time.Sleep(time.Millisecond)
				}
			}
			done <- true
		}(i)
	}

	// Start consumer goroutines
	consumed := make(chan string, numGoroutines*numEvents)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			eventChan := q.Dequeue(ctx)
			for ev := range eventChan {
				consumed <- ev.SubmissionID
			}
		}()
	}

	// Wait for producers to finish
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	// Wait a bit for consumers to process
	time.Sleep(100 * time.Millisecond)

	// Check final queue length
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	ev1 := model.SolveEvent{SubmissionID: "sub1", ChallengeID: "chal1", TeamID: "team1", TeamSize: 1}
	ev2 := model.SolveEvent{SubmissionID: "sub2", ChallengeID: "chal1", TeamID: "team2", TeamSize: 1}

	if !q.Enqueue(ctx, ev1) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, ev2) {
		t.Error("expected enqueue to succeed")
	}

	// Check initial state
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	// Close the queue
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	// Check closed state
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	// Try to enqueue after closing (should fail)
	if q.Enqueue(ctx, ev1) {
		t.Error("expected enqueue to fail after closing")
	}

	// Dequeue channel should drain and close
	eventChan := q.Dequeue(ctx)

	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case _, ok := <-eventChan:
			if !ok {
				goto channelClosed
			}
		case <-timeout:
			t.Error("expected dequeue channel to be closed within timeout")
			return
		}
	}
channelClosed:

	// Close again should not error
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
