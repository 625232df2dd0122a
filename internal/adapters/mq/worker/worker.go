// Package worker runs the admission workers that drain the vote queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 4
	workerShutdownTimeout = 5 * time.Second
	sideEffectTimeout     = 10 * time.Second
)

// Event is what workers read off the queue.
type Event = model.VoteEvent

// Admitter runs the admission pipeline for one event.
type Admitter interface {
	Admit(ctx context.Context, e model.VoteEvent) (model.Result, error)
}

// Acker acknowledges a processed event to its originating source.
type Acker interface {
	Ack(ctx context.Context, e model.VoteEvent) error
}

// Notifier announces an accepted vote. Failures are logged, never retried.
type Notifier interface {
	Notify(ctx context.Context, name string, weight int, voter string) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes vote events from the queue until stopped.
type Worker struct {
	queue    Queue
	admitter Admitter
	acker    Acker
	notifier Notifier
	name     string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a new admission worker.
func NewWorker(q Queue, admitter Admitter, acker Acker, notifier Notifier, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		admitter: admitter,
		acker:    acker,
		notifier: notifier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing vote", logger.Error(err))
			}
		}
	}
}

// processEvent admits one event and fires the post-commit side effects.
// Acknowledgment and notification run concurrently; neither can undo the
// committed vote, and neither failure is propagated to the vote path.
// Admission only reports Duplicate for durably committed ids, so acking a
// Duplicate never discards work.
func (w *Worker) processEvent(ctx context.Context, event Event) error {
	res, err := w.admitter.Admit(ctx, event)
	if err != nil {
		// The event had no effect; upstream redelivery retries it.
		return fmt.Errorf("admit event %s: %w", event.EventID, err)
	}

	w.logger.Debug(ctx, "vote processed",
		logger.String("eventID", event.EventID),
		logger.String("outcome", res.Outcome.String()),
		logger.String("name", res.Name),
		logger.Int("score", res.Score),
	)

	// Side effects get their own timeout so a hung sink cannot wedge the
	// worker past shutdown.
	effectCtx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.acker.Ack(effectCtx, event); err != nil {
			metrics.RecordAckError()
			w.logger.Warn(effectCtx, "failed to acknowledge event",
				logger.String("eventID", event.EventID), logger.Error(err))
		}
	}()

	if res.Outcome == model.Accepted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.notifier.Notify(effectCtx, res.Name, res.Weight, event.Voter); err != nil {
				metrics.RecordNotifyError()
				w.logger.Warn(effectCtx, "failed to send notification",
					logger.String("name", res.Name), logger.Error(err))
			}
		}()
	}

	wg.Wait()
	return nil
}

// Shutdown stops the worker and waits for the in-flight event to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker %s shutdown: %w", w.name, ctx.Err())
	}
}

// Pool manages multiple admission workers.
type Pool struct {
	workers []*Worker
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers sharing one queue.
func NewPool(workerCount int, q Queue, admitter Admitter, acker Acker, notifier Notifier) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
		if workerCount > defaultWorkerCount {
			workerCount = defaultWorkerCount
		}
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(q, admitter, acker, notifier,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers. The caller closes the queue first;
// workers then exit on their own once its channel is drained. Stragglers
// still running after the grace period are signaled to quit mid-stream and
// given a short final wait.
func (p *Pool) Stop() {
	grace := make(chan struct{})
	timer := time.AfterFunc(workerShutdownTimeout, func() { close(grace) })
	defer timer.Stop()

	for _, w := range p.workers {
		select {
		case <-w.done:
			continue
		case <-grace:
		}
		w.stopOnce.Do(func() { close(w.shutdown) })
		select {
		case <-w.done:
		case <-time.After(time.Second):
			p.logger.Warn(context.Background(), "worker did not stop in time",
				logger.String("worker", w.name))
		}
	}
}
