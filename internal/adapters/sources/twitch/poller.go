package twitch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// defaultPollInterval is how often unfulfilled redemptions are listed.
const defaultPollInterval = 2 * time.Second

// Enqueuer accepts vote events for asynchronous admission.
type Enqueuer interface {
	Enqueue(ctx context.Context, e model.VoteEvent) bool
}

// RedemptionLister is the slice of Client the poller needs.
type RedemptionLister interface {
	Redemptions(ctx context.Context, rewardID string) ([]Redemption, error)
}

// Poller converts unfulfilled redemptions into vote events. Each configured
// reward maps to one vote tier and is polled concurrently.
//
// Rewards that come back inaccessible are quarantined for the rest of the
// process lifetime instead of being retried every tick; a misconfigured
// reward id would otherwise spam the API and the log forever.
type Poller struct {
	client   RedemptionLister
	queue    Enqueuer
	rewards  map[string]model.VoteType
	interval time.Duration

	mu          sync.Mutex
	quarantined map[string]struct{}

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// PollerOption applies a configuration option to the Poller.
type PollerOption func(*Poller)

// WithPollInterval sets the redemption poll period.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollerLogger sets a custom logger for the poller.
func WithPollerLogger(l logger.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller creates a poller over the given reward-to-tier mapping.
func NewPoller(client RedemptionLister, queue Enqueuer, rewards map[string]model.VoteType, opts ...PollerOption) *Poller {
	p := &Poller{
		client:      client,
		queue:       queue,
		rewards:     rewards,
		interval:    defaultPollInterval,
		quarantined: make(map[string]struct{}),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Named("twitch-poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until the context is canceled or Shutdown is called.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll lists every active reward in parallel and enqueues what it finds.
// Per-reward failures are isolated; one broken reward never starves the rest.
func (p *Poller) poll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for rewardID, tier := range p.rewards {
		if p.isQuarantined(rewardID) {
			continue
		}
		rewardID, tier := rewardID, tier
		g.Go(func() error {
			p.pollReward(gctx, rewardID, tier)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Poller) pollReward(ctx context.Context, rewardID string, tier model.VoteType) {
	redemptions, err := p.client.Redemptions(ctx, rewardID)
	if err != nil {
		if errors.Is(err, ErrRewardInaccessible) {
			p.quarantine(rewardID)
			p.logger.Error(ctx, "reward quarantined, check reward id and credentials",
				logger.String("rewardID", rewardID), logger.Error(err))
			return
		}
		p.logger.Warn(ctx, "redemption poll failed",
			logger.String("rewardID", rewardID), logger.Error(err))
		return
	}

	now := time.Now()
	for _, redemption := range redemptions {
		e := model.VoteEvent{
			EventID:    redemption.ID,
			RawLabel:   redemption.UserInput,
			Type:       tier,
			Voter:      redemption.UserName,
			ReceivedAt: now,
			RewardID:   rewardID,
		}
		if !p.queue.Enqueue(ctx, e) {
			p.logger.Warn(ctx, "queue full, redemption left unfulfilled for redelivery",
				logger.String("eventID", e.EventID))
		}
	}
}

func (p *Poller) isQuarantined(rewardID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.quarantined[rewardID]
	return ok
}

func (p *Poller) quarantine(rewardID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quarantined[rewardID] = struct{}{}
}

// Shutdown stops the poll loop and waits for it to exit.
func (p *Poller) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.shutdown) })
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
