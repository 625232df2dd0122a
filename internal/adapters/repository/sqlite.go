// Package repository defines the catalog store interface and errors.
//
// The SQLite implementation keeps the aggregate score as a cache of the
// audit log: every accepted vote appends one vote_records row and bumps the
// matching entries row inside the same transaction. The unique index on
// vote_records.event_id doubles as the dedup index, so the "not seen" check
// and the insert are a single atomic step.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// unvotedSortKey orders entries that never received a vote after all voted
// ones within the same score band.
const unvotedSortKey = int64(9223372036854775807)

const defaultBusyTimeout = 5 * time.Second

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB

	busyTimeout  time.Duration
	maxOpenConns int
}

// New opens (or creates) the database at path and runs migrations.
func New(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	// _txlock=immediate makes every write transaction take the write lock at
	// BEGIN, so concurrent admissions queue on the busy timeout instead of
	// failing mid-transaction.
	dsn := fmt.Sprintf(
		"file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate",
		path, s.busyTimeout.Milliseconds(),
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s.db = db
	return s, nil
}

// isUniqueConstraintErr returns true when the error indicates a unique or
// constraint violation.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// RecordVote commits one vote atomically: entry upsert, audit append, score
// bump, pending-change bump. A reused event id rolls everything back and
// returns ErrDuplicateEvent.
func (s *SQLiteStore) RecordVote(ctx context.Context, eventID, name string, weight int, voteType, voter string) (int, bool, error) {
	name = strings.TrimSpace(name)
	switch {
	case eventID == "":
		return 0, false, ErrEmptyEventID
	case name == "":
		return 0, false, ErrEmptyName
	case weight <= 0:
		return 0, false, ErrInvalidWeight
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var created bool
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE name = ?`, name).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO entries (name, score) VALUES (?, 0)`, name); err != nil {
			return 0, false, fmt.Errorf("create entry: %w", err)
		}
		created = true
	case err != nil:
		return 0, false, fmt.Errorf("lookup entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO vote_records (event_id, entry_name, vote_type, weight, voter) VALUES (?, ?, ?, ?, ?)`,
		eventID, name, voteType, weight, voter,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, false, ErrDuplicateEvent
		}
		return 0, false, fmt.Errorf("append vote record: %w", err)
	}

	var score int
	err = tx.QueryRowContext(ctx,
		`UPDATE entries
		 SET score = score + ?, first_vote_at = COALESCE(first_vote_at, ?), updated_at = CURRENT_TIMESTAMP
		 WHERE name = ?
		 RETURNING score`,
		weight, time.Now().UnixNano(), name,
	).Scan(&score)
	if err != nil {
		return 0, false, fmt.Errorf("update score: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sync_state SET pending_changes = pending_changes + 1 WHERE id = 1`,
	); err != nil {
		return 0, false, fmt.Errorf("bump pending changes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit vote: %w", err)
	}
	return score, created, nil
}

// CreateEntry registers an entry with zero score. Existing entries are left
// untouched.
func (s *SQLiteStore) CreateEntry(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entries (name, score) VALUES (?, 0)`, name,
	); err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// Names returns all canonical entry names, highest score first.
func (s *SQLiteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM entries ORDER BY score DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}

// rankOrder is the canonical leaderboard ordering: score desc, earliest
// first vote, then name. Entries without votes keep their seed position at
// the end of their score band.
const rankOrder = `score DESC, COALESCE(first_vote_at, 9223372036854775807) ASC, name ASC`

// TopN returns the leaderboard; n <= 0 returns every entry.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	query := `SELECT name, score FROM entries ORDER BY ` + rankOrder
	var args []any
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Score); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}

// Rank returns the rank and score for one entry without a full scan.
func (s *SQLiteStore) Rank(ctx context.Context, name string) (Entry, error) {
	var score int
	var firstVote sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT score, first_vote_at FROM entries WHERE name = ?`, name,
	).Scan(&score, &firstVote)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("lookup entry: %w", err)
	}

	sortKey := unvotedSortKey
	if firstVote.Valid {
		sortKey = firstVote.Int64
	}

	var better int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries
		 WHERE score > ?1
		    OR (score = ?1 AND COALESCE(first_vote_at, 9223372036854775807) < ?2)
		    OR (score = ?1 AND COALESCE(first_vote_at, 9223372036854775807) = ?2 AND name < ?3)`,
		score, sortKey, name,
	).Scan(&better)
	if err != nil {
		return Entry{}, fmt.Errorf("compute rank: %w", err)
	}

	return Entry{Rank: better + 1, Name: name, Score: score}, nil
}

// Count returns the number of entries tracked.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// RecordUnresolved persists a label that matched nothing for offline review.
func (s *SQLiteStore) RecordUnresolved(ctx context.Context, rawLabel string) error {
	rawLabel = strings.TrimSpace(rawLabel)
	if rawLabel == "" {
		return ErrEmptyName
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO unresolved_labels (raw_label) VALUES (?)`, rawLabel,
	); err != nil {
		return fmt.Errorf("record unresolved label: %w", err)
	}
	return nil
}

// PendingChanges reports commits since the last successful replication.
func (s *SQLiteStore) PendingChanges(ctx context.Context) (int, error) {
	var pending int
	err := s.db.QueryRowContext(ctx,
		`SELECT pending_changes FROM sync_state WHERE id = 1`,
	).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("query pending changes: %w", err)
	}
	return pending, nil
}

// MarkSynced records a completed replication cycle and clears the
// pending-change counter.
func (s *SQLiteStore) MarkSynced(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sync_state
		 SET last_sync = CURRENT_TIMESTAMP, sync_count = sync_count + 1, pending_changes = 0
		 WHERE id = 1`,
	); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// Stats returns store-wide aggregate numbers.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(score), 0) FROM entries`,
	).Scan(&st.Entries, &st.TotalScore)
	if err != nil {
		return Stats{}, fmt.Errorf("query entry stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vote_records`).Scan(&st.Records); err != nil {
		return Stats{}, fmt.Errorf("query record count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unresolved_labels`).Scan(&st.Unresolved); err != nil {
		return Stats{}, fmt.Errorf("query unresolved count: %w", err)
	}

	var lastSync sql.NullTime
	err = s.db.QueryRowContext(ctx,
		`SELECT last_sync, sync_count FROM sync_state WHERE id = 1`,
	).Scan(&lastSync, &st.SyncCount)
	if err != nil {
		return Stats{}, fmt.Errorf("query sync state: %w", err)
	}
	if lastSync.Valid {
		st.LastSync = lastSync.Time
	}
	return st, nil
}

// sqliteTimeLayout matches CURRENT_TIMESTAMP text, which is always UTC.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// EntryStats aggregates the audit log for one entry. MIN/MAX strip the
// column's declared type, so the timestamps come back as text and are parsed
// here.
func (s *SQLiteStore) EntryStats(ctx context.Context, name string) (EntryStats, error) {
	var es EntryStats
	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(weight), 0), COUNT(DISTINCT voter),
		        CAST(MIN(processed_at) AS TEXT), CAST(MAX(processed_at) AS TEXT)
		 FROM vote_records WHERE entry_name = ?`, name,
	).Scan(&es.VoteCount, &es.TotalWeight, &es.UniqueVoters, &first, &last)
	if err != nil {
		return EntryStats{}, fmt.Errorf("query entry stats: %w", err)
	}
	if es.VoteCount == 0 {
		return EntryStats{}, ErrNotFound
	}
	es.Name = name
	if first.Valid {
		if t, err := time.ParseInLocation(sqliteTimeLayout, first.String, time.UTC); err == nil {
			es.FirstVote = t
		}
	}
	if last.Valid {
		if t, err := time.ParseInLocation(sqliteTimeLayout, last.String, time.UTC); err == nil {
			es.LastVote = t
		}
	}
	return es, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
