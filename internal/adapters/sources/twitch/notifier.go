package twitch

import (
	"context"
	"fmt"

	"github.com/okian/tally/internal/domain/types"
)

// ChatSender is the slice of Client the notifier needs.
type ChatSender interface {
	SendChat(ctx context.Context, message string) error
}

// Ranker looks up the current standing of an entry.
type Ranker interface {
	Rank(ctx context.Context, name string) (types.Entry, error)
}

// Notifier announces accepted votes in chat, including the entry's standing
// when the lookup succeeds.
type Notifier struct {
	client ChatSender
	ranker Ranker
}

// NewNotifier creates a chat notifier.
func NewNotifier(client ChatSender, ranker Ranker) *Notifier {
	return &Notifier{client: client, ranker: ranker}
}

// Notify posts the vote confirmation. The rank lookup is best effort; a
// failed lookup still produces a confirmation, just without the standing.
func (n *Notifier) Notify(ctx context.Context, name string, weight int, voter string) error {
	msg := fmt.Sprintf("@%s voted for %s (+%d)", voter, name, weight)
	if entry, err := n.ranker.Rank(ctx, name); err == nil {
		msg = fmt.Sprintf("%s, now #%d with %d votes", msg, entry.Rank, entry.Score)
	}
	return n.client.SendChat(ctx, msg)
}
