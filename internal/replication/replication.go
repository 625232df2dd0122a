// Package replication pushes ranked tally snapshots to the external view.
package replication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tally/internal/adapters/view"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Default replication configuration constants.
const (
	defaultInterval   = 5 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	finalSyncTimeout  = 10 * time.Second
)

// Consecutive failed cycles before the log level escalates from warn to error.
const escalateAfter = 3

// Snapshotter provides the state the replicator mirrors.
type Snapshotter interface {
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	PendingChanges(ctx context.Context) (int, error)
	MarkSynced(ctx context.Context) error
}

// Replicator periodically copies the full ranked tally into the external
// view. Each cycle is a complete overwrite, so a lost cycle is repaired by
// the next one and retries never double-apply.
type Replicator struct {
	store      Snapshotter
	view       view.View
	interval   time.Duration
	maxRetries int
	backoff    time.Duration

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	consecutiveFailures int

	logger logger.Logger
}

// New creates a replicator mirroring store into v.
func New(store Snapshotter, v view.View, opts ...Option) *Replicator {
	r := &Replicator{
		store:      store,
		view:       v,
		interval:   defaultInterval,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Named("replication"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the replication loop until the context is canceled or Shutdown
// is called. On exit it attempts one final best-effort sync so the view does
// not go stale across a clean restart.
func (r *Replicator) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finalSync()
			return
		case <-r.shutdown:
			r.finalSync()
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

// cycle runs one replication pass: skip when nothing changed, otherwise push
// a snapshot with bounded retries and clear the pending counter on success.
func (r *Replicator) cycle(ctx context.Context) {
	pending, err := r.store.PendingChanges(ctx)
	if err != nil {
		r.fail(ctx, fmt.Errorf("check pending changes: %w", err))
		return
	}
	if pending == 0 {
		metrics.RecordReplicationSkipped()
		return
	}

	start := time.Now()
	if err := r.push(ctx); err != nil {
		r.fail(ctx, err)
		return
	}

	if err := r.store.MarkSynced(ctx); err != nil {
		// The view is current; only the bookkeeping failed. The next cycle
		// re-pushes the same snapshot, which is harmless.
		r.fail(ctx, fmt.Errorf("mark synced: %w", err))
		return
	}

	r.consecutiveFailures = 0
	metrics.RecordReplicationSync()
	metrics.RecordReplicationDuration(float64(time.Since(start).Milliseconds()))
	metrics.UpdateReplicationLastSuccess(time.Now().Unix())
}

// push snapshots the tally and overwrites the view, retrying transient
// failures with exponential backoff. The snapshot is re-read on every
// attempt so a retry always carries the freshest state.
func (r *Replicator) push(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff << (attempt - 1)):
			}
		}

		rows, err := r.store.TopN(ctx, 0)
		if err != nil {
			lastErr = fmt.Errorf("snapshot tally: %w", err)
			continue
		}
		if err := r.view.Overwrite(ctx, rows); err != nil {
			lastErr = fmt.Errorf("overwrite view: %w", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("retry budget exhausted: %w", lastErr)
}

// fail records a failed cycle. The cycle is abandoned, not blocked on: the
// pending counter stays set and the next tick tries again.
func (r *Replicator) fail(ctx context.Context, err error) {
	r.consecutiveFailures++
	metrics.RecordReplicationError()

	fields := []logger.Field{
		logger.Error(err),
		logger.Int("consecutiveFailures", r.consecutiveFailures),
	}
	if r.consecutiveFailures >= escalateAfter {
		r.logger.Error(ctx, "replication cycle failed repeatedly", fields...)
		return
	}
	r.logger.Warn(ctx, "replication cycle failed", fields...)
}

// finalSync pushes one last snapshot during shutdown if changes are pending.
func (r *Replicator) finalSync() {
	ctx, cancel := context.WithTimeout(context.Background(), finalSyncTimeout)
	defer cancel()

	pending, err := r.store.PendingChanges(ctx)
	if err != nil || pending == 0 {
		return
	}
	if err := r.push(ctx); err != nil {
		r.logger.Warn(ctx, "final sync failed", logger.Error(err))
		return
	}
	if err := r.store.MarkSynced(ctx); err != nil {
		r.logger.Warn(ctx, "final sync bookkeeping failed", logger.Error(err))
	}
}

// Shutdown stops the loop and waits for the final sync to complete.
func (r *Replicator) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.shutdown) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("replicator shutdown: %w", ctx.Err())
	}
}
