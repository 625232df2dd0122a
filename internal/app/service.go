// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the console.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/tally/internal/adapters/mq/queue"
	workerpool "github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/sources/twitch"
	"github.com/okian/tally/internal/adapters/view"
	"github.com/okian/tally/internal/domain/admission"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/resolve"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/internal/replication"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// noopAcker acknowledges nothing; used when no redemption source is wired.
type noopAcker struct{}

func (noopAcker) Ack(context.Context, model.VoteEvent) error { return nil }

// noopNotifier announces nothing; used when no chat sink is wired.
type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, int, string) error { return nil }

// Service owns the vote pipeline: sources feed the queue, workers admit
// events into the store, and the replicator mirrors the result outward.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	resolver   *resolve.Resolver
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	admitter   *admission.Admitter
	workerPool *workerpool.Pool
	replicator *replication.Replicator
	poller     *twitch.Poller

	// Configuration
	dbPath        string
	threshold     int
	weights       model.Weights
	cacheTTL      time.Duration
	queueSize     int
	workerCount   int
	dedupeSize    int
	syncInterval  time.Duration
	syncRetries   int
	createMissing bool

	// Optional externals
	sink         view.View
	twitchClient *twitch.Client
	rewards      map[string]model.VoteType
	pollInterval time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database file.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithThreshold sets the resolution confidence threshold.
func WithThreshold(threshold int) Option {
	return func(s *Service) {
		if threshold >= 0 && threshold <= 100 {
			s.threshold = threshold
		}
	}
}

// WithWeights sets the per-tier vote weights.
func WithWeights(w model.Weights) Option {
	return func(s *Service) {
		if w.Valid() {
			s.weights = w
		}
	}
}

// WithCacheTTL sets the resolver name-cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of admission workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
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

// WithSyncInterval sets the replication cycle period.
func WithSyncInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.syncInterval = d
		}
	}
}

// WithSyncRetries bounds push retries per replication cycle.
func WithSyncRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.syncRetries = n
		}
	}
}

// WithCreateMissing lets manual votes create catalog entries on the fly.
func WithCreateMissing(enabled bool) Option {
	return func(s *Service) {
		s.createMissing = enabled
	}
}

// WithView sets the external view receiving tally snapshots.
func WithView(v view.View) Option {
	return func(s *Service) {
		if v != nil {
			s.sink = v
		}
	}
}

// WithTwitch wires the channel-point redemption source.
func WithTwitch(client *twitch.Client, rewards map[string]model.VoteType, pollInterval time.Duration) Option {
	return func(s *Service) {
		s.twitchClient = client
		s.rewards = rewards
		if pollInterval > 0 {
			s.pollInterval = pollInterval
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:        "tally.db",
		threshold:     resolve.DefaultThreshold,
		weights:       model.DefaultWeights(),
		cacheTTL:      resolve.DefaultCacheTTL,
		queueSize:     10_000,
		workerCount:   4,
		dedupeSize:    50_000,
		syncInterval:  5 * time.Second,
		syncRetries:   3,
		createMissing: true,
		sink:          view.Discard{},
		pollInterval:  2 * time.Second,
		logger:        nil, // Will be replaced when service starts
	}

	// Apply all options
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

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting vote tally service...")

	store, err := repository.New(ctx, s.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	s.resolver = resolve.New(store, resolve.WithCacheTTL(s.cacheTTL))
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.admitter = admission.New(store, s.resolver, s.deduper,
		admission.WithWeights(s.weights),
		admission.WithThreshold(s.threshold),
	)

	var (
		acker    workerpool.Acker    = noopAcker{}
		notifier workerpool.Notifier = noopNotifier{}
	)
	if s.twitchClient != nil {
		acker = twitch.NewAcker(s.twitchClient)
		notifier = twitch.NewNotifier(s.twitchClient, store)
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.admitter, acker, notifier)
	s.workerPool.Start(ctx)

	s.replicator = replication.New(store, s.sink,
		replication.WithInterval(s.syncInterval),
		replication.WithMaxRetries(s.syncRetries),
	)
	go s.replicator.Run(ctx)

	if s.twitchClient != nil && len(s.rewards) > 0 {
		s.poller = twitch.NewPoller(s.twitchClient, s.eventQueue, s.rewards,
			twitch.WithPollInterval(s.pollInterval),
		)
		go s.poller.Run(ctx)
	}

	s.started = true
	s.logStartupStats(ctx)

	return nil
}

// logStartupStats prints where the tally stands, so a restart mid-vote shows
// immediately whether state survived.
func (s *Service) logStartupStats(ctx context.Context) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to read store stats", logger.Error(err))
		return
	}
	metrics.UpdateTotalEntries(stats.Entries)
	s.logger.Info(ctx, "vote tally service started",
		logger.Int("entries", stats.Entries),
		logger.Int("totalScore", stats.TotalScore),
		logger.Int("voteRecords", stats.Records),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("threshold", s.threshold),
	)
}

// Stop gracefully shuts down the service. Sources stop first so the queue
// drains, then workers, then the replicator runs its final sync.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping vote tally service...")

	if s.poller != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.poller.Shutdown(stopCtx); err != nil {
			s.logger.Warn(ctx, "poller shutdown", logger.Error(err))
		}
		cancel()
	}

	if s.eventQueue != nil {
		_ = s.eventQueue.Close()
	}

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	if s.replicator != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := s.replicator.Shutdown(stopCtx); err != nil {
			s.logger.Warn(ctx, "replicator shutdown", logger.Error(err))
		}
		cancel()
	}

	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "vote tally service stopped")
}

// Enqueue submits an event for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, e model.VoteEvent) bool {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	return s.eventQueue.Enqueue(ctx, e)
}

// VoteManual admits one operator-entered vote synchronously so the console
// can report the outcome immediately.
func (s *Service) VoteManual(ctx context.Context, label string, weight int) (model.Result, error) {
	e := model.VoteEvent{
		EventID:     uuid.NewString(),
		RawLabel:    label,
		Type:        model.VoteManual,
		Weight:      weight,
		Voter:       "console",
		ReceivedAt:  time.Now(),
		AllowCreate: s.createMissing,
	}
	return s.admitter.Admit(ctx, e)
}

// AddEntry registers a catalog entry with zero score so it can win votes by
// fuzzy match before anyone votes for it. Idempotent.
func (s *Service) AddEntry(ctx context.Context, name string) error {
	if err := s.store.CreateEntry(ctx, name); err != nil {
		return err
	}
	s.resolver.Invalidate()
	return nil
}

// TopN returns the top N tally entries; n <= 0 returns all.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.store.TopN(ctx, n)
}

// Rank returns the rank and score for a given entry name.
func (s *Service) Rank(ctx context.Context, name string) (types.Entry, error) {
	return s.store.Rank(ctx, name)
}

// Stats returns store-wide aggregate numbers plus live pipeline gauges.
func (s *Service) Stats(ctx context.Context) (repository.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return repository.Stats{}, err
	}

	metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	metrics.UpdateTotalEntries(stats.Entries)
	return stats, nil
}

// EntryStats aggregates the audit log for one entry.
func (s *Service) EntryStats(ctx context.Context, name string) (repository.EntryStats, error) {
	return s.store.EntryStats(ctx, name)
}

// QueueLen reports the current queue depth.
func (s *Service) QueueLen(ctx context.Context) int {
	if s.eventQueue == nil {
		return 0
	}
	return s.eventQueue.Len(ctx)
}
