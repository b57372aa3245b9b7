// Command seed-solves floods a running service with generated solve
// submissions and prints the resulting scoreboard. Useful for smoke
// testing the ingest path and eyeballing the scoring output.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Default configuration constants.
const (
	defaultNumSolves = 10000
	defaultTopN      = 50
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 30 * time.Second
	defaultRunLimit  = 10 * time.Minute
	settleDelay      = 2 * time.Second
)

// challengePool mirrors the default seed challenges shipped in the
// example config.
var challengePool = []string{
	"warmup-web", "crypto-classic", "pwn-heap", "rev-vm", "forensics-pcap",
	"misc-trivia", "daily-drop", "expert-kernel",
}

type solveRequest struct {
	SubmissionID string `json:"submission_id"`
	ChallengeID  string `json:"challenge_id"`
	TeamID       string `json:"team_id"`
	TeamSize     int    `json:"team_size"`
	SolvedAt     string `json:"solved_at"`
}

type stats struct {
	accepted   atomic.Int64
	duplicates atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numSolves = flag.Int("solves", defaultNumSolves, "Number of solve submissions to generate")
		teams     = flag.Int("teams", 100, "Number of distinct teams to simulate")
		topN      = flag.Int("top", defaultTopN, "Number of standings to fetch from the scoreboard")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		dupRate   = flag.Float64("dup-rate", 0.05, "Fraction of submissions replayed with the same submission id")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	client := &http.Client{Timeout: *timeout}

	if err := waitHealthy(ctx, client, *baseURL); err != nil {
		os.Stderr.WriteString("service not healthy: " + err.Error() + "\n")
		os.Exit(1)
	}

	var st stats
	jobs := make(chan solveRequest, *workers)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				submit(ctx, client, *baseURL, req, &st)
			}
		}()
	}

	start := time.Now()
	var last solveRequest
	for i := 0; i < *numSolves; i++ {
		req := generateSolve(*teams)
		// Occasionally replay the previous submission to exercise the
		// idempotency path.
		if last.SubmissionID != "" && rand.Float64() < *dupRate {
			req = last
		}
		last = req

		select {
		case jobs <- req:
		case <-ctx.Done():
			i = *numSolves
		}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("submitted %d solves in %s (%.0f/s)\n",
		*numSolves, elapsed.Round(time.Millisecond), float64(*numSolves)/elapsed.Seconds())
	fmt.Printf("accepted=%d duplicates=%d rejected=%d failed=%d\n",
		st.accepted.Load(), st.duplicates.Load(), st.rejected.Load(), st.failed.Load())

	// Give the workers a moment to drain the queue before reading.
	time.Sleep(settleDelay)
	printScoreboard(ctx, client, *baseURL, *topN)
}

func generateSolve(teams int) solveRequest {
	return solveRequest{
		SubmissionID: uuid.NewString(),
		ChallengeID:  challengePool[rand.Intn(len(challengePool))],
		TeamID:       fmt.Sprintf("team-%03d", rand.Intn(teams)+1),
		TeamSize:     rand.Intn(5) + 1,
		SolvedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}

func submit(ctx context.Context, client *http.Client, baseURL string, sr solveRequest, st *stats) {
	body, err := json.Marshal(sr)
	if err != nil {
		st.failed.Add(1)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/solves", bytes.NewReader(body))
	if err != nil {
		st.failed.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		st.failed.Add(1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		st.accepted.Add(1)
	case http.StatusOK:
		st.duplicates.Add(1)
	case http.StatusTooManyRequests:
		st.rejected.Add(1)
	default:
		st.failed.Add(1)
	}
}

func waitHealthy(ctx context.Context, client *http.Client, baseURL string) error {
	var lastErr error
	for i := 0; i < 10; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", http.NoBody)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("healthz returned %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		time.Sleep(time.Second)
	}
	return lastErr
}

func printScoreboard(ctx context.Context, client *http.Client, baseURL string, topN int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/scoreboard?limit=%d", baseURL, topN), http.NoBody)
	if err != nil {
		os.Stderr.WriteString("scoreboard request failed: " + err.Error() + "\n")
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Stderr.WriteString("scoreboard fetch failed: " + err.Error() + "\n")
		return
	}
	defer resp.Body.Close()

	var standings []struct {
		Rank   int    `json:"rank"`
		TeamID string `json:"team_id"`
		Points int    `json:"points"`
		Solves int    `json:"solves"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&standings); err != nil {
		os.Stderr.WriteString("scoreboard decode failed: " + err.Error() + "\n")
		return
	}

	fmt.Println("rank  team       points  solves")
	for _, s := range standings {
		fmt.Printf("%-5d %-10s %-7d %d\n", s.Rank, s.TeamID, s.Points, s.Solves)
	}
}
