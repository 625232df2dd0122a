// Package console provides the operator's interactive vote prompt.
//
// Logs go to stderr, so stdout stays clean for this prompt.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// exitCommand ends the console loop.
const exitCommand = "exit"

// topCount is how many rows the "top" command prints.
const topCount = 10

// Voter is the slice of the service the console needs.
type Voter interface {
	VoteManual(ctx context.Context, label string, weight int) (model.Result, error)
	AddEntry(ctx context.Context, name string) error
	TopN(ctx context.Context, n int) ([]types.Entry, error)
}

// Console reads manual votes from an input stream until "exit" or EOF.
type Console struct {
	service Voter
	in      io.Reader
	out     io.Writer
}

// Option applies a configuration option to the Console.
type Option func(*Console)

// WithStreams overrides stdin/stdout, mainly for tests.
func WithStreams(in io.Reader, out io.Writer) Option {
	return func(c *Console) {
		if in != nil {
			c.in = in
		}
		if out != nil {
			c.out = out
		}
	}
}

// New creates a console bound to the service.
func New(service Voter, opts ...Option) *Console {
	c := &Console{
		service: service,
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives the prompt loop. It returns when the operator types "exit",
// the input stream closes, or the context is canceled.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	fmt.Fprintln(c.out, `Manual vote entry. Type a name to vote, "add <name>" to register an entry, "top" for standings, "exit" to quit.`)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		label := strings.TrimSpace(scanner.Text())
		switch {
		case label == "":
			continue
		case strings.EqualFold(label, exitCommand):
			return nil
		case strings.EqualFold(label, "top"):
			c.printTop(ctx)
			continue
		case strings.EqualFold(label, "add"):
			c.addEntry(ctx, "")
			continue
		case strings.HasPrefix(strings.ToLower(label), "add "):
			c.addEntry(ctx, strings.TrimSpace(label[4:]))
			continue
		}

		weight, ok := c.readWeight(scanner)
		if !ok {
			return scanner.Err()
		}

		res, err := c.service.VoteManual(ctx, label, weight)
		if err != nil {
			fmt.Fprintf(c.out, "vote failed: %v\n", err)
			continue
		}
		c.printResult(label, res)
	}
}

// addEntry registers a zero-score entry so it can be voted for by name.
func (c *Console) addEntry(ctx context.Context, name string) {
	if name == "" {
		fmt.Fprintln(c.out, `usage: add <name>`)
		return
	}
	if err := c.service.AddEntry(ctx, name); err != nil {
		fmt.Fprintf(c.out, "add failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "entry %q registered\n", name)
}

// readWeight prompts for the vote count, defaulting to 1 on a blank line.
func (c *Console) readWeight(scanner *bufio.Scanner) (int, bool) {
	for {
		fmt.Fprint(c.out, "votes [1]: ")
		if !scanner.Scan() {
			return 0, false
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			return 1, true
		}
		n, err := strconv.Atoi(text)
		if err != nil || n <= 0 {
			fmt.Fprintln(c.out, "enter a positive number")
			continue
		}
		return n, true
	}
}

func (c *Console) printResult(label string, res model.Result) {
	switch res.Outcome {
	case model.Accepted:
		if res.Created {
			fmt.Fprintf(c.out, "added new entry %q with %d votes\n", res.Name, res.Score)
			return
		}
		fmt.Fprintf(c.out, "%q now has %d votes\n", res.Name, res.Score)
	case model.Duplicate:
		fmt.Fprintln(c.out, "vote already counted")
	case model.Unresolved:
		fmt.Fprintf(c.out, "no entry matches %q\n", label)
	}
}

func (c *Console) printTop(ctx context.Context) {
	entries, err := c.service.TopN(ctx, topCount)
	if err != nil {
		fmt.Fprintf(c.out, "standings unavailable: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no votes yet")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "%3d. %-40s %d\n", e.Rank, e.Name, e.Score)
	}
}
