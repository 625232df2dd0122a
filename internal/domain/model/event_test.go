package model_test

import (
	"testing"

	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWeights(t *testing.T) {
	Convey("Given the default weights", t, func() {
		w := model.DefaultWeights()

		Convey("Then they should be the standard 1/10/25 mapping", func() {
			So(w.Normal, ShouldEqual, 1)
			So(w.Super, ShouldEqual, 10)
			So(w.Ultra, ShouldEqual, 25)
			So(w.Valid(), ShouldBeTrue)
		})

		Convey("When weighting events by type", func() {
			Convey("Then normal votes get the normal weight", func() {
				So(w.For(model.VoteEvent{Type: model.VoteNormal}), ShouldEqual, 1)
			})

			Convey("Then super votes get the super weight", func() {
				So(w.For(model.VoteEvent{Type: model.VoteSuper}), ShouldEqual, 10)
			})

			Convey("Then ultra votes get the ultra weight", func() {
				So(w.For(model.VoteEvent{Type: model.VoteUltra}), ShouldEqual, 25)
			})

			Convey("Then manual votes carry their own weight", func() {
				So(w.For(model.VoteEvent{Type: model.VoteManual, Weight: 7}), ShouldEqual, 7)
			})

			Convey("Then unknown types fall back to the normal weight", func() {
				So(w.For(model.VoteEvent{Type: "mystery"}), ShouldEqual, 1)
			})
		})
	})

	Convey("Given custom weights", t, func() {
		Convey("Then non-positive weights are invalid", func() {
			So(model.Weights{Normal: 0, Super: 10, Ultra: 25}.Valid(), ShouldBeFalse)
			So(model.Weights{Normal: 1, Super: -1, Ultra: 25}.Valid(), ShouldBeFalse)
			So(model.Weights{Normal: 2, Super: 4, Ultra: 8}.Valid(), ShouldBeTrue)
		})
	})
}

func TestOutcomeString(t *testing.T) {
	Convey("Given the admission outcomes", t, func() {
		Convey("Then each stringifies to its lowercase name", func() {
			So(model.Accepted.String(), ShouldEqual, "accepted")
			So(model.Duplicate.String(), ShouldEqual, "duplicate")
			So(model.Unresolved.String(), ShouldEqual, "unresolved")
			So(model.Outcome(99).String(), ShouldEqual, "unknown")
		})
	})
}
