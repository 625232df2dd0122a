package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/tally/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func newStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.New(context.Background(), filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordVote(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh store", t, func() {
		s := newStore(t)

		Convey("When recording a vote for a new entry", func() {
			score, created, err := s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "alice")

			Convey("Then the entry is created with the vote's weight", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(score, ShouldEqual, 1)
				So(s.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When recording several votes for the same entry", func() {
			_, _, err := s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "alice")
			So(err, ShouldBeNil)
			score, created, err := s.RecordVote(ctx, "e2", "Celeste", 10, "super", "bob")

			Convey("Then the score accumulates and no new entry appears", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(score, ShouldEqual, 11)
				So(s.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When reusing an event id", func() {
			_, _, err := s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "alice")
			So(err, ShouldBeNil)
			_, _, err = s.RecordVote(ctx, "e1", "Celeste", 25, "ultra", "mallory")

			Convey("Then the duplicate is rejected and nothing changed", func() {
				So(errors.Is(err, repository.ErrDuplicateEvent), ShouldBeTrue)
				entry, rerr := s.Rank(ctx, "Celeste")
				So(rerr, ShouldBeNil)
				So(entry.Score, ShouldEqual, 1)
			})
		})

		Convey("When reusing an event id for a different entry", func() {
			_, _, err := s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "alice")
			So(err, ShouldBeNil)
			_, _, err = s.RecordVote(ctx, "e1", "Hades", 1, "normal", "alice")

			Convey("Then the first write wins and no phantom entry remains", func() {
				So(errors.Is(err, repository.ErrDuplicateEvent), ShouldBeTrue)
				_, rerr := s.Rank(ctx, "Hades")
				So(errors.Is(rerr, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the input is invalid", func() {
			Convey("Then an empty event id is rejected", func() {
				_, _, err := s.RecordVote(ctx, "", "Celeste", 1, "normal", "")
				So(errors.Is(err, repository.ErrEmptyEventID), ShouldBeTrue)
			})

			Convey("Then an empty name is rejected", func() {
				_, _, err := s.RecordVote(ctx, "e1", "   ", 1, "normal", "")
				So(errors.Is(err, repository.ErrEmptyName), ShouldBeTrue)
			})

			Convey("Then a non-positive weight is rejected", func() {
				_, _, err := s.RecordVote(ctx, "e1", "Celeste", 0, "normal", "")
				So(errors.Is(err, repository.ErrInvalidWeight), ShouldBeTrue)
			})
		})

		Convey("When many votes land concurrently on the same entry", func() {
			const n = 20
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, _, errs[i] = s.RecordVote(ctx, fmt.Sprintf("e%d", i), "Celeste", 1, "normal", fmt.Sprintf("v%d", i))
				}(i)
			}
			wg.Wait()

			Convey("Then every vote commits and the score equals the sum", func() {
				for i := range errs {
					So(errs[i], ShouldBeNil)
				}
				entry, err := s.Rank(ctx, "Celeste")
				So(err, ShouldBeNil)
				So(entry.Score, ShouldEqual, n)
			})
		})
	})
}

func TestScoreMatchesAuditLog(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with a mix of vote weights", t, func() {
		s := newStore(t)
		weights := []int{1, 1, 10, 25, 1}
		total := 0
		for i, w := range weights {
			_, _, err := s.RecordVote(ctx, fmt.Sprintf("e%d", i), "Hades", w, "normal", "alice")
			So(err, ShouldBeNil)
			total += w
		}

		Convey("Then the cached score equals the sum over the audit log", func() {
			entry, err := s.Rank(ctx, "Hades")
			So(err, ShouldBeNil)
			So(entry.Score, ShouldEqual, total)

			es, err := s.EntryStats(ctx, "Hades")
			So(err, ShouldBeNil)
			So(es.TotalWeight, ShouldEqual, total)
			So(es.VoteCount, ShouldEqual, len(weights))
		})
	})
}

func TestRanking(t *testing.T) {
	ctx := context.Background()

	Convey("Given entries with distinct scores", t, func() {
		s := newStore(t)
		_, _, _ = s.RecordVote(ctx, "a1", "Alpha", 5, "manual", "")
		_, _, _ = s.RecordVote(ctx, "b1", "Beta", 10, "manual", "")
		_, _, _ = s.RecordVote(ctx, "c1", "Gamma", 1, "manual", "")

		Convey("Then TopN orders by score descending with dense ranks", func() {
			entries, err := s.TopN(ctx, 0)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 3)
			So(entries[0].Name, ShouldEqual, "Beta")
			So(entries[0].Rank, ShouldEqual, 1)
			So(entries[1].Name, ShouldEqual, "Alpha")
			So(entries[2].Name, ShouldEqual, "Gamma")
		})

		Convey("Then TopN honors the limit", func() {
			entries, err := s.TopN(ctx, 2)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
		})

		Convey("Then Rank agrees with the full ordering", func() {
			for want, name := range []string{"Beta", "Alpha", "Gamma"} {
				entry, err := s.Rank(ctx, name)
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, want+1)
			}
		})

		Convey("Then unknown names report not found", func() {
			_, err := s.Rank(ctx, "Delta")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given two entries tied on score", t, func() {
		s := newStore(t)
		_, _, _ = s.RecordVote(ctx, "a1", "Alpha", 5, "manual", "")
		_, _, _ = s.RecordVote(ctx, "b1", "Beta", 5, "manual", "")

		Convey("Then the earlier first vote ranks higher and stays stable", func() {
			entries, err := s.TopN(ctx, 0)
			So(err, ShouldBeNil)
			So(entries[0].Name, ShouldEqual, "Alpha")
			So(entries[1].Name, ShouldEqual, "Beta")

			// Catching up to the same score must not displace the leader.
			_, _, _ = s.RecordVote(ctx, "b2", "Beta", 5, "manual", "")
			_, _, _ = s.RecordVote(ctx, "a2", "Alpha", 5, "manual", "")
			entries, err = s.TopN(ctx, 0)
			So(err, ShouldBeNil)
			So(entries[0].Name, ShouldEqual, "Alpha")
		})
	})

	Convey("Given an entry created without votes", t, func() {
		s := newStore(t)
		So(s.CreateEntry(ctx, "Seeded"), ShouldBeNil)
		_, _, _ = s.RecordVote(ctx, "a1", "Alpha", 1, "manual", "")

		Convey("Then voted entries outrank it and creation is idempotent", func() {
			So(s.CreateEntry(ctx, "Seeded"), ShouldBeNil)
			entries, err := s.TopN(ctx, 0)
			So(err, ShouldBeNil)
			So(entries[0].Name, ShouldEqual, "Alpha")
			So(entries[1].Name, ShouldEqual, "Seeded")
			So(entries[1].Score, ShouldEqual, 0)
		})
	})
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh store", t, func() {
		s := newStore(t)

		Convey("Then there are no pending changes", func() {
			pending, err := s.PendingChanges(ctx)
			So(err, ShouldBeNil)
			So(pending, ShouldEqual, 0)
		})

		Convey("When votes are committed", func() {
			_, _, _ = s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "")
			_, _, _ = s.RecordVote(ctx, "e2", "Celeste", 1, "normal", "")

			Convey("Then each commit bumps the pending counter", func() {
				pending, err := s.PendingChanges(ctx)
				So(err, ShouldBeNil)
				So(pending, ShouldEqual, 2)
			})

			Convey("And MarkSynced clears it and records the cycle", func() {
				So(s.MarkSynced(ctx), ShouldBeNil)
				pending, err := s.PendingChanges(ctx)
				So(err, ShouldBeNil)
				So(pending, ShouldEqual, 0)

				st, err := s.Stats(ctx)
				So(err, ShouldBeNil)
				So(st.SyncCount, ShouldEqual, 1)
				So(st.LastSync.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When duplicates are rejected", func() {
			_, _, _ = s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "")
			_, _, err := s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "")
			So(errors.Is(err, repository.ErrDuplicateEvent), ShouldBeTrue)

			Convey("Then the rejected vote does not count as a change", func() {
				pending, err := s.PendingChanges(ctx)
				So(err, ShouldBeNil)
				So(pending, ShouldEqual, 1)
			})
		})
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with votes and unresolved labels", t, func() {
		s := newStore(t)
		_, _, _ = s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "alice")
		_, _, _ = s.RecordVote(ctx, "e2", "Hades", 10, "super", "bob")
		So(s.RecordUnresolved(ctx, "galf wars"), ShouldBeNil)

		Convey("Then Stats reflects every table", func() {
			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Entries, ShouldEqual, 2)
			So(st.TotalScore, ShouldEqual, 11)
			So(st.Records, ShouldEqual, 2)
			So(st.Unresolved, ShouldEqual, 1)
			So(st.SyncCount, ShouldEqual, 0)
		})

		Convey("Then EntryStats aggregates one entry's audit log", func() {
			_, _, _ = s.RecordVote(ctx, "e3", "Celeste", 1, "normal", "alice")
			es, err := s.EntryStats(ctx, "Celeste")
			So(err, ShouldBeNil)
			So(es.VoteCount, ShouldEqual, 2)
			So(es.TotalWeight, ShouldEqual, 2)
			So(es.UniqueVoters, ShouldEqual, 1)
			So(es.FirstVote.IsZero(), ShouldBeFalse)
			So(es.LastVote.Before(es.FirstVote), ShouldBeFalse)
		})

		Convey("Then EntryStats on an unvoted name reports not found", func() {
			_, err := s.EntryStats(ctx, "Nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestNames(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with several entries", t, func() {
		s := newStore(t)
		_, _, _ = s.RecordVote(ctx, "e1", "Celeste", 1, "normal", "")
		_, _, _ = s.RecordVote(ctx, "e2", "Hades", 10, "super", "")
		So(s.CreateEntry(ctx, "Seeded"), ShouldBeNil)

		Convey("Then Names returns every canonical name", func() {
			names, err := s.Names(ctx)
			So(err, ShouldBeNil)
			So(names, ShouldHaveLength, 3)
			So(names, ShouldContain, "Celeste")
			So(names, ShouldContain, "Hades")
			So(names, ShouldContain, "Seeded")
		})
	})
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store that was closed and reopened", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "tally.db")

		s, err := repository.New(ctx, path)
		So(err, ShouldBeNil)
		_, _, err = s.RecordVote(ctx, "e1", "Celeste", 25, "ultra", "alice")
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		s2, err := repository.New(ctx, path)
		So(err, ShouldBeNil)
		defer s2.Close()

		Convey("Then the tally survives the restart", func() {
			entry, err := s2.Rank(ctx, "Celeste")
			So(err, ShouldBeNil)
			So(entry.Score, ShouldEqual, 25)

			pending, err := s2.PendingChanges(ctx)
			So(err, ShouldBeNil)
			So(pending, ShouldEqual, 1)
		})

		Convey("Then a duplicate of the old event is still rejected", func() {
			_, _, err := s2.RecordVote(ctx, "e1", "Celeste", 1, "normal", "bob")
			So(errors.Is(err, repository.ErrDuplicateEvent), ShouldBeTrue)
		})
	})
}
