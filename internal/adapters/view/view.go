// Package view defines the external read-only mirror of the tally.
package view

import (
	"context"

	"github.com/okian/tally/internal/domain/types"
)

// Row is one mirrored leaderboard row.
type Row = types.Entry

// View receives full snapshots of the ranked tally. Overwrite must be
// idempotent: repeated identical calls are safe.
type View interface {
	Overwrite(ctx context.Context, rows []Row) error
}

// Discard is a View that drops every snapshot. Used when no external view is
// configured so the replication path stays wired end to end.
type Discard struct{}

// Overwrite implements View.
func (Discard) Overwrite(_ context.Context, _ []Row) error {
	return nil
}
