package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithDBPath(filepath.Join(t.TempDir(), "tally.db")),
		service.WithQueueSize(100),
		service.WithWorkerCount(2),
		service.WithSyncInterval(50 * time.Millisecond),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newService(t)

		Convey("Then starting again is a no-op", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
		})

		Convey("Then stopping twice is harmless", func() {
			svc.Stop()
			svc.Stop()
		})
	})
}

func TestServicePipeline(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a seeded catalog", t, func() {
		svc := newService(t)

		res, err := svc.VoteManual(ctx, "Dark Souls III", 1)
		So(err, ShouldBeNil)
		So(res.Outcome, ShouldEqual, model.Accepted)
		So(res.Created, ShouldBeTrue)

		Convey("When a misspelled vote arrives through the queue", func() {
			ok := svc.Enqueue(ctx, model.VoteEvent{
				EventID:  "e1",
				RawLabel: "dark souls 3",
				Type:     model.VoteSuper,
				Voter:    "alice",
			})
			So(ok, ShouldBeTrue)

			Convey("Then it lands on the canonical entry", func() {
				So(eventually(func() bool {
					entry, err := svc.Rank(ctx, "Dark Souls III")
					return err == nil && entry.Score == 11
				}), ShouldBeTrue)
			})
		})

		Convey("When the same event is enqueued twice", func() {
			for i := 0; i < 2; i++ {
				So(svc.Enqueue(ctx, model.VoteEvent{
					EventID:  "e1",
					RawLabel: "dark souls 3",
					Type:     model.VoteNormal,
				}), ShouldBeTrue)
			}

			Convey("Then it counts once", func() {
				So(eventually(func() bool {
					entry, err := svc.Rank(ctx, "Dark Souls III")
					return err == nil && entry.Score == 2
				}), ShouldBeTrue)
				time.Sleep(100 * time.Millisecond)
				entry, err := svc.Rank(ctx, "Dark Souls III")
				So(err, ShouldBeNil)
				So(entry.Score, ShouldEqual, 2)
			})
		})

		Convey("When many votes arrive for several entries", func() {
			_, err := svc.VoteManual(ctx, "Celeste", 1)
			So(err, ShouldBeNil)
			for i := 0; i < 10; i++ {
				So(svc.Enqueue(ctx, model.VoteEvent{
					EventID:  fmt.Sprintf("c%d", i),
					RawLabel: "celeste",
					Type:     model.VoteNormal,
				}), ShouldBeTrue)
			}

			Convey("Then the leaderboard reflects the totals", func() {
				So(eventually(func() bool {
					entries, err := svc.TopN(ctx, 0)
					return err == nil && len(entries) == 2 && entries[0].Name == "Celeste" && entries[0].Score == 11
				}), ShouldBeTrue)

				stats, err := svc.Stats(ctx)
				So(err, ShouldBeNil)
				So(stats.Entries, ShouldEqual, 2)
				So(stats.TotalScore, ShouldEqual, 12)
			})
		})

		Convey("When an entry is registered before any vote", func() {
			svc2 := newService(t, service.WithCreateMissing(false))
			So(svc2.AddEntry(ctx, "Hollow Knight"), ShouldBeNil)

			Convey("Then a vote resolves to it without creating anything", func() {
				res, err := svc2.VoteManual(ctx, "hollow knight", 1)
				So(err, ShouldBeNil)
				So(res.Outcome, ShouldEqual, model.Accepted)
				So(res.Name, ShouldEqual, "Hollow Knight")
				So(res.Created, ShouldBeFalse)
			})

			Convey("And registering it again is harmless", func() {
				So(svc2.AddEntry(ctx, "Hollow Knight"), ShouldBeNil)
			})
		})

		Convey("When a manual vote matches nothing and creation is disabled", func() {
			svc2 := newService(t, service.WithCreateMissing(false))
			res, err := svc2.VoteManual(ctx, "completely unknown game", 1)

			Convey("Then it is unresolved", func() {
				So(err, ShouldBeNil)
				So(res.Outcome, ShouldEqual, model.Unresolved)
			})
		})
	})
}
