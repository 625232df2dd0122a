package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/tally/internal/console"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeVoter scripts VoteManual results and records calls.
type fakeVoter struct {
	votes   []vote
	added   []string
	result  model.Result
	err     error
	addErr  error
	entries []types.Entry
}

type vote struct {
	label  string
	weight int
}

func (f *fakeVoter) VoteManual(_ context.Context, label string, weight int) (model.Result, error) {
	f.votes = append(f.votes, vote{label: label, weight: weight})
	if f.err != nil {
		return model.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeVoter) AddEntry(_ context.Context, name string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, name)
	return nil
}

func (f *fakeVoter) TopN(_ context.Context, _ int) ([]types.Entry, error) {
	return f.entries, nil
}

func run(svc *fakeVoter, input string) (string, error) {
	var out bytes.Buffer
	c := console.New(svc, console.WithStreams(strings.NewReader(input), &out))
	err := c.Run(context.Background())
	return out.String(), err
}

func TestConsole(t *testing.T) {
	Convey("Given an interactive console", t, func() {
		Convey("When the operator votes with an explicit count", func() {
			svc := &fakeVoter{result: model.Result{Outcome: model.Accepted, Name: "Celeste", Score: 7}}
			out, err := run(svc, "celeste\n7\nexit\n")

			Convey("Then the vote is submitted with that weight", func() {
				So(err, ShouldBeNil)
				So(svc.votes, ShouldResemble, []vote{{label: "celeste", weight: 7}})
				So(out, ShouldContainSubstring, `"Celeste" now has 7 votes`)
			})
		})

		Convey("When the operator accepts the default count", func() {
			svc := &fakeVoter{result: model.Result{Outcome: model.Accepted, Name: "Celeste", Score: 1}}
			_, err := run(svc, "celeste\n\nexit\n")

			Convey("Then a single vote is submitted", func() {
				So(err, ShouldBeNil)
				So(svc.votes, ShouldResemble, []vote{{label: "celeste", weight: 1}})
			})
		})

		Convey("When the count is not a positive number", func() {
			svc := &fakeVoter{result: model.Result{Outcome: model.Accepted, Name: "Celeste", Score: 1}}
			out, err := run(svc, "celeste\n-3\n2\nexit\n")

			Convey("Then the prompt repeats until valid", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "enter a positive number")
				So(svc.votes, ShouldResemble, []vote{{label: "celeste", weight: 2}})
			})
		})

		Convey("When a new entry is created", func() {
			svc := &fakeVoter{result: model.Result{Outcome: model.Accepted, Name: "Brand New", Score: 1, Created: true}}
			out, err := run(svc, "brand new\n\nexit\n")

			Convey("Then the creation is called out", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, `added new entry "Brand New"`)
			})
		})

		Convey("When the vote is unresolved", func() {
			svc := &fakeVoter{result: model.Result{Outcome: model.Unresolved}}
			out, err := run(svc, "galf wars\n\nexit\n")

			Convey("Then the operator is told nothing matched", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, `no entry matches "galf wars"`)
			})
		})

		Convey("When the service fails", func() {
			svc := &fakeVoter{err: errors.New("store down")}
			out, err := run(svc, "celeste\n\nexit\n")

			Convey("Then the loop reports and keeps going", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "vote failed")
			})
		})

		Convey("When the operator asks for standings", func() {
			svc := &fakeVoter{entries: []types.Entry{
				{Rank: 1, Name: "Hades", Score: 11},
				{Rank: 2, Name: "Celeste", Score: 3},
			}}
			out, err := run(svc, "top\nexit\n")

			Convey("Then the board is printed without voting", func() {
				So(err, ShouldBeNil)
				So(svc.votes, ShouldBeEmpty)
				So(out, ShouldContainSubstring, "Hades")
				So(out, ShouldContainSubstring, "Celeste")
			})
		})

		Convey("When the operator registers an entry", func() {
			svc := &fakeVoter{}
			out, err := run(svc, "add Hollow Knight\nexit\n")

			Convey("Then the entry is added without voting", func() {
				So(err, ShouldBeNil)
				So(svc.added, ShouldResemble, []string{"Hollow Knight"})
				So(svc.votes, ShouldBeEmpty)
				So(out, ShouldContainSubstring, `entry "Hollow Knight" registered`)
			})
		})

		Convey("When the add command has no name", func() {
			svc := &fakeVoter{}
			out, err := run(svc, "add   \nexit\n")

			Convey("Then usage is printed and nothing is added", func() {
				So(err, ShouldBeNil)
				So(svc.added, ShouldBeEmpty)
				So(out, ShouldContainSubstring, "usage: add <name>")
			})
		})

		Convey("When registering an entry fails", func() {
			svc := &fakeVoter{addErr: errors.New("store down")}
			out, err := run(svc, "add Hades\nexit\n")

			Convey("Then the loop reports and keeps going", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "add failed")
			})
		})

		Convey("When the input stream ends without exit", func() {
			svc := &fakeVoter{}
			_, err := run(svc, "")

			Convey("Then the loop returns cleanly", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When blank lines are entered", func() {
			svc := &fakeVoter{}
			_, err := run(svc, "\n\nexit\n")

			Convey("Then they are ignored", func() {
				So(err, ShouldBeNil)
				So(svc.votes, ShouldBeEmpty)
			})
		})
	})
}
