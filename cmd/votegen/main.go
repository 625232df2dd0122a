// Command votegen floods a running tally service with synthetic votes and
// prints the resulting leaderboard. Useful for smoke-testing the pipeline.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Default configuration constants.
const (
	defaultNumVotes = 1000
	defaultWorkers  = 8
	defaultTopN     = 20
	defaultTimeout  = 10 * time.Second
	defaultRunLimit = 5 * time.Minute
)

// labels mixes clean names with the misspellings voters actually type.
var labels = []string{
	"Dark Souls III",
	"dark souls 3",
	"drak souls",
	"Hollow Knight",
	"hollow nite",
	"Celeste",
	"celest",
	"Elden Ring",
	"eldin ring",
	"Hades",
	"Stardew Valley",
	"stardew vally",
	"Outer Wilds",
	"outer wild",
}

var voteTypes = []string{"normal", "normal", "normal", "normal", "super", "ultra"}

type voteRequest struct {
	EventID string `json:"event_id"`
	Label   string `json:"label"`
	Type    string `json:"type"`
	Voter   string `json:"voter"`
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numVotes  = flag.Int("votes", defaultNumVotes, "Number of votes to submit")
		workers   = flag.Int("workers", defaultWorkers, "Number of concurrent submitters")
		topN      = flag.Int("top", defaultTopN, "Number of leaderboard rows to print")
		duplicate = flag.Float64("duplicate", 0.1, "Fraction of votes resubmitted with a reused event id")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	client := &http.Client{Timeout: *timeout}
	rng := rand.New(rand.NewSource(*seed))

	// Pre-generate the full batch so the duplicate fraction can reuse ids.
	votes := make([]voteRequest, 0, *numVotes)
	for i := 0; i < *numVotes; i++ {
		if len(votes) > 0 && rng.Float64() < *duplicate {
			votes = append(votes, votes[rng.Intn(len(votes))])
			continue
		}
		votes = append(votes, voteRequest{
			EventID: uuid.NewString(),
			Label:   labels[rng.Intn(len(labels))],
			Type:    voteTypes[rng.Intn(len(voteTypes))],
			Voter:   fmt.Sprintf("viewer-%03d", rng.Intn(200)),
		})
	}

	start := time.Now()
	jobs := make(chan voteRequest)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *workers; i++ {
		g.Go(func() error {
			for v := range jobs {
				if err := submit(gctx, client, *baseURL, v); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, v := range votes {
			select {
			case jobs <- v:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		os.Stderr.WriteString("vote submission failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	fmt.Printf("submitted %d votes in %s\n", len(votes), time.Since(start).Round(time.Millisecond))

	if err := printLeaderboard(ctx, client, *baseURL, *topN); err != nil {
		os.Stderr.WriteString("leaderboard fetch failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func submit(ctx context.Context, client *http.Client, baseURL string, v voteRequest) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/votes", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// Backpressure is expected under load; anything else is a hard failure.
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("unexpected status %d for vote %s", resp.StatusCode, v.EventID)
	}
	return nil
}

func printLeaderboard(ctx context.Context, client *http.Client, baseURL string, topN int) error {
	// Give the async pipeline a moment to drain.
	time.Sleep(2 * time.Second)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/leaderboard?limit=%d", baseURL, topN), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var entries []struct {
		Rank  int    `json:"rank"`
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%3d. %-40s %d\n", e.Rank, e.Name, e.Score)
	}
	return nil
}
