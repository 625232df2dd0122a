package replication_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/view"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/internal/replication"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

// fakeSnapshotter serves a fixed board and tracks sync bookkeeping.
type fakeSnapshotter struct {
	mu      sync.Mutex
	rows    []types.Entry
	pending int
	synced  int
}

func (f *fakeSnapshotter) TopN(_ context.Context, _ int) ([]types.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Entry(nil), f.rows...), nil
}

func (f *fakeSnapshotter) PendingChanges(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

func (f *fakeSnapshotter) MarkSynced(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = 0
	f.synced++
	return nil
}

func (f *fakeSnapshotter) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.synced
}

func (f *fakeSnapshotter) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// fakeView records snapshots and can fail the first N writes.
type fakeView struct {
	mu        sync.Mutex
	writes    [][]view.Row
	failFirst int
	calls     int
}

func (f *fakeView) Overwrite(_ context.Context, rows []view.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return errors.New("view unavailable")
	}
	f.writes = append(f.writes, append([]view.Row(nil), rows...))
	return nil
}

func (f *fakeView) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeView) lastWrite() []view.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestReplicator(t *testing.T) {
	ctx := context.Background()
	board := []types.Entry{
		{Rank: 1, Name: "Hades", Score: 11},
		{Rank: 2, Name: "Celeste", Score: 3},
	}

	Convey("Given a replicator over fakes", t, func() {
		Convey("When changes are pending", func() {
			store := &fakeSnapshotter{rows: board, pending: 2}
			sink := &fakeView{}
			r := replication.New(store, sink,
				replication.WithInterval(10*time.Millisecond),
				replication.WithBackoff(time.Millisecond),
			)
			go r.Run(ctx)

			Convey("Then the board is mirrored and the counter cleared", func() {
				So(eventually(func() bool { return store.syncCount() == 1 }), ShouldBeTrue)
				So(sink.lastWrite(), ShouldResemble, board)
				So(store.pendingCount(), ShouldEqual, 0)
			})

			Reset(func() {
				stopCtx, cancel := context.WithTimeout(ctx, time.Second)
				_ = r.Shutdown(stopCtx)
				cancel()
			})
		})

		Convey("When nothing changed", func() {
			store := &fakeSnapshotter{rows: board, pending: 0}
			sink := &fakeView{}
			r := replication.New(store, sink,
				replication.WithInterval(10*time.Millisecond),
			)
			go r.Run(ctx)
			time.Sleep(60 * time.Millisecond)

			Convey("Then the view is never touched", func() {
				So(sink.writeCount(), ShouldEqual, 0)
				So(store.syncCount(), ShouldEqual, 0)
			})

			Reset(func() {
				stopCtx, cancel := context.WithTimeout(ctx, time.Second)
				_ = r.Shutdown(stopCtx)
				cancel()
			})
		})

		Convey("When the view fails transiently", func() {
			store := &fakeSnapshotter{rows: board, pending: 1}
			sink := &fakeView{failFirst: 2}
			r := replication.New(store, sink,
				replication.WithInterval(10*time.Millisecond),
				replication.WithMaxRetries(3),
				replication.WithBackoff(time.Millisecond),
			)
			go r.Run(ctx)

			Convey("Then retries within the cycle still converge", func() {
				So(eventually(func() bool { return store.syncCount() == 1 }), ShouldBeTrue)
				So(sink.lastWrite(), ShouldResemble, board)
			})

			Reset(func() {
				stopCtx, cancel := context.WithTimeout(ctx, time.Second)
				_ = r.Shutdown(stopCtx)
				cancel()
			})
		})

		Convey("When the retry budget is exhausted", func() {
			store := &fakeSnapshotter{rows: board, pending: 1}
			sink := &fakeView{failFirst: 1 << 30}
			r := replication.New(store, sink,
				replication.WithInterval(10*time.Millisecond),
				replication.WithMaxRetries(1),
				replication.WithBackoff(time.Millisecond),
			)
			go r.Run(ctx)
			time.Sleep(80 * time.Millisecond)

			Convey("Then the cycle is abandoned and the changes stay pending", func() {
				So(store.syncCount(), ShouldEqual, 0)
				So(store.pendingCount(), ShouldEqual, 1)
			})

			Reset(func() {
				stopCtx, cancel := context.WithTimeout(ctx, time.Second)
				_ = r.Shutdown(stopCtx)
				cancel()
			})
		})

		Convey("When the replicator shuts down with pending changes", func() {
			// Long interval so no regular cycle fires before shutdown.
			store := &fakeSnapshotter{rows: board, pending: 1}
			sink := &fakeView{}
			r := replication.New(store, sink,
				replication.WithInterval(time.Hour),
				replication.WithBackoff(time.Millisecond),
			)
			go r.Run(ctx)
			time.Sleep(10 * time.Millisecond)

			stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			So(r.Shutdown(stopCtx), ShouldBeNil)

			Convey("Then one final best-effort sync runs", func() {
				So(sink.writeCount(), ShouldEqual, 1)
				So(store.syncCount(), ShouldEqual, 1)
			})
		})
	})
}
