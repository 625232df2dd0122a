// Package admission accepts raw vote events, rejects duplicates, resolves
// labels and commits weighted votes to the catalog store.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/resolve"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Store is the slice of the catalog store admission needs.
type Store interface {
	RecordVote(ctx context.Context, eventID, name string, weight int, voteType, voter string) (int, bool, error)
	RecordUnresolved(ctx context.Context, rawLabel string) error
}

// Resolver maps a raw label to a canonical name.
type Resolver interface {
	Resolve(ctx context.Context, rawLabel string, threshold int) (resolve.Match, error)
	Invalidate()
}

// Admitter runs the admission pipeline: dedup, resolve, commit.
type Admitter struct {
	store     Store
	resolver  Resolver
	deduper   dedupe.Deduper
	weights   model.Weights
	threshold int
	logger    logger.Logger
}

// Option applies a configuration option to the Admitter.
type Option func(*Admitter)

// WithWeights sets the vote-type weight mapping.
func WithWeights(w model.Weights) Option {
	return func(a *Admitter) {
		if w.Valid() {
			a.weights = w
		}
	}
}

// WithThreshold sets the inclusive resolution confidence threshold.
func WithThreshold(threshold int) Option {
	return func(a *Admitter) {
		if threshold >= 0 && threshold <= 100 {
			a.threshold = threshold
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Admitter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Admitter.
func New(store Store, resolver Resolver, deduper dedupe.Deduper, opts ...Option) *Admitter {
	a := &Admitter{
		store:     store,
		resolver:  resolver,
		deduper:   deduper,
		weights:   model.DefaultWeights(),
		threshold: resolve.DefaultThreshold,
		logger:    logger.Named("admission"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Admit processes a single vote event. The outcome is always surfaced to the
// caller; Duplicate and Unresolved are ordinary results, not errors. An error
// return means the store failed and the event had no effect; the upstream
// source's redelivery will retry it.
func (a *Admitter) Admit(ctx context.Context, e model.VoteEvent) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAdmissionLatency(float64(time.Since(start).Milliseconds()))
	}()

	if e.EventID == "" {
		return model.Result{}, repository.ErrEmptyEventID
	}

	weight := a.weights.For(e)
	if weight <= 0 {
		return model.Result{}, repository.ErrInvalidWeight
	}

	// Fast path: the cache holds only ids whose outcome already committed, so
	// a hit here is safe to ack. Ids still in flight fall through and race on
	// the store's unique index instead.
	if a.deduper.Seen(ctx, e.EventID) {
		metrics.RecordVoteDuplicate()
		return model.Result{Outcome: model.Duplicate}, nil
	}

	name, err := a.resolveName(ctx, e)
	switch {
	case errors.Is(err, resolve.ErrNoMatch):
		metrics.RecordVoteUnresolved()
		if err := a.store.RecordUnresolved(ctx, e.RawLabel); err != nil {
			a.logger.Warn(ctx, "failed to record unresolved label",
				logger.String("label", e.RawLabel), logger.Error(err))
		}
		a.deduper.Record(ctx, e.EventID)
		return model.Result{Outcome: model.Unresolved}, nil
	case err != nil:
		// Resolution needs the name set from the store; let the source retry.
		metrics.RecordAdmissionError()
		return model.Result{}, fmt.Errorf("resolve label %q: %w", e.RawLabel, err)
	}

	score, created, err := a.store.RecordVote(ctx, e.EventID, name, weight, string(e.Type), e.Voter)
	switch {
	case errors.Is(err, repository.ErrDuplicateEvent):
		a.deduper.Record(ctx, e.EventID)
		metrics.RecordVoteDuplicate()
		return model.Result{Outcome: model.Duplicate}, nil
	case err != nil:
		metrics.RecordAdmissionError()
		return model.Result{}, fmt.Errorf("record vote %s: %w", e.EventID, err)
	}

	a.deduper.Record(ctx, e.EventID)
	if created {
		a.resolver.Invalidate()
	}

	metrics.RecordVoteAccepted()
	return model.Result{
		Outcome: model.Accepted,
		Name:    name,
		Weight:  weight,
		Score:   score,
		Created: created,
	}, nil
}

// resolveName applies the fuzzy resolver and, for administrative events that
// allow it, falls back to creating a fresh entry under the trimmed label.
func (a *Admitter) resolveName(ctx context.Context, e model.VoteEvent) (string, error) {
	match, err := a.resolver.Resolve(ctx, e.RawLabel, a.threshold)
	if err == nil {
		return match.Name, nil
	}
	if errors.Is(err, resolve.ErrNoMatch) && e.AllowCreate {
		if name := strings.TrimSpace(e.RawLabel); name != "" {
			return name, nil
		}
	}
	return "", err
}

// Threshold returns the configured confidence threshold.
func (a *Admitter) Threshold() int {
	return a.threshold
}
