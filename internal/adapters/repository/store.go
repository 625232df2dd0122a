// Package repository defines the catalog store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/okian/tally/internal/domain/types"
)

// Entry represents a ranked catalog row.
type Entry = types.Entry

// Stats summarizes the store for startup output and the /stats endpoint.
type Stats struct {
	Entries    int
	TotalScore int
	Records    int
	Unresolved int
	LastSync   time.Time
	SyncCount  int
}

// EntryStats aggregates the audit log for a single entry.
type EntryStats struct {
	Name         string
	VoteCount    int
	TotalWeight  int
	UniqueVoters int
	FirstVote    time.Time
	LastVote     time.Time
}

// Store provides read/write access to the authoritative tally state.
//
// RecordVote is the only mutation on scores. It appends one audit record and
// bumps the entry's score in a single transaction, creating the entry when it
// does not exist yet. A reused event id returns ErrDuplicateEvent and leaves
// the store untouched.
type Store interface {
	// RecordVote commits one vote. Returns the entry's new score and whether
	// the entry was created by this vote.
	RecordVote(ctx context.Context, eventID, name string, weight int, voteType, voter string) (int, bool, error)

	// CreateEntry registers a catalog entry with zero score. Idempotent.
	CreateEntry(ctx context.Context, name string) error

	// Names returns all canonical entry names for the resolver cache.
	Names(ctx context.Context) ([]string, error)

	// Rank returns the current rank and score for an entry.
	// Returns ErrNotFound if the entry is unknown.
	Rank(ctx context.Context, name string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc; n <= 0 returns all.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of entries tracked.
	Count(ctx context.Context) int

	// RecordUnresolved persists a label that matched nothing, for review.
	RecordUnresolved(ctx context.Context, rawLabel string) error

	// PendingChanges reports how many commits happened since the last
	// successful replication cycle.
	PendingChanges(ctx context.Context) (int, error)

	// MarkSynced resets the pending-change counter after replication.
	MarkSynced(ctx context.Context) error

	// Stats returns store-wide aggregate numbers.
	Stats(ctx context.Context) (Stats, error)

	// EntryStats aggregates the audit log for one entry.
	EntryStats(ctx context.Context, name string) (EntryStats, error)

	// Close releases the underlying database handle.
	Close() error
}
