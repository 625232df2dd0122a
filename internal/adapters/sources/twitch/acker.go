package twitch

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
)

// Fulfiller is the slice of Client the acker needs.
type Fulfiller interface {
	Fulfill(ctx context.Context, rewardID, redemptionID string) error
}

// Acker fulfills processed redemptions so channel points are consumed.
// Events without a reward id (manual and API votes) need no acknowledgment.
type Acker struct {
	client Fulfiller
}

// NewAcker creates an acker over the given client.
func NewAcker(client Fulfiller) *Acker {
	return &Acker{client: client}
}

// Ack marks the event's redemption fulfilled.
func (a *Acker) Ack(ctx context.Context, e model.VoteEvent) error {
	if e.RewardID == "" {
		return nil
	}
	return a.client.Fulfill(ctx, e.RewardID, e.EventID)
}
