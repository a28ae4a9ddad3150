package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/ledger"
	"github.com/roach88/splice/internal/lock"
	"github.com/roach88/splice/internal/routing"
	"github.com/roach88/splice/internal/splice"
	"github.com/roach88/splice/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory book whose sheets are
// created by splice.Init first. An error is returned only when the
// scenario cannot be run at all; expectation mismatches are reported in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	layout := routing.Default()
	if scenario.Routing != "" {
		var err error
		layout, err = routing.LoadFile(scenario.Routing)
		if err != nil {
			return nil, fmt.Errorf("failed to load routing: %w", err)
		}
	}

	analytics := scenario.AnalyticsSheet
	if analytics == "" {
		analytics = DefaultAnalyticsSheet
	}

	ctx := context.Background()
	book := ledger.NewMemoryBook(analytics)
	if _, err := splice.Init(ctx, book, layout, analytics, nil); err != nil {
		return nil, fmt.Errorf("failed to create sheets: %w", err)
	}

	coord := splice.NewCoordinator(book, lock.NewLocal(), layout,
		splice.WithTokenGenerator(testutil.NewSequenceGenerator("sub")),
		splice.WithBackoff(time.Millisecond, 10*time.Millisecond),
	)

	result := NewResult(len(scenario.Submissions))
	submit := func(i int) {
		answers := ir.Flatten(scenario.Submissions[i].Answers)
		res, err := coord.Splice(ctx, answers)
		result.Invocations[i] = invocationOf(i, layout, answers, res, err)
	}

	if scenario.Concurrent {
		var g errgroup.Group
		for i := range scenario.Submissions {
			i := i
			g.Go(func() error {
				submit(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range scenario.Submissions {
			submit(i)
		}
	}

	for i, step := range scenario.Submissions {
		if step.Expect == nil {
			continue
		}
		if err := checkExpect(result.Invocations[i], step.Expect); err != nil {
			result.AddError(fmt.Sprintf("submissions[%d]: %v", i, err))
		}
	}

	if err := capture(ctx, book, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func invocationOf(i int, layout routing.Layout, answers ir.AnswerVector, res *splice.Result, err error) Invocation {
	inv := Invocation{
		Index:        i,
		Identity:     layout.Fields.IdentityOf(answers).String(),
		Destinations: []string{},
	}
	if res != nil {
		inv.Token = res.Token
		inv.NewIdentity = res.NewIdentity
		inv.Destinations = res.Sheets()
		inv.Unknown = res.Unknown
	}
	if err != nil {
		inv.Error = err.Error()
	}
	return inv
}

func checkExpect(inv Invocation, expect *ExpectClause) error {
	switch {
	case expect.Error == "" && inv.Error != "":
		return fmt.Errorf("unexpected error: %s", inv.Error)
	case expect.Error != "" && !strings.Contains(inv.Error, expect.Error):
		return fmt.Errorf("expected error containing %q, got %q", expect.Error, inv.Error)
	}

	if expect.Destinations != nil && !slices.Equal(expect.Destinations, inv.Destinations) {
		return fmt.Errorf("expected destinations %v, got %v", expect.Destinations, inv.Destinations)
	}
	if expect.NewIdentity != nil && *expect.NewIdentity != inv.NewIdentity {
		return fmt.Errorf("expected new_identity %v, got %v", *expect.NewIdentity, inv.NewIdentity)
	}
	if expect.Unknown != nil && !slices.Equal(expect.Unknown, inv.Unknown) {
		return fmt.Errorf("expected unknown %v, got %v", expect.Unknown, inv.Unknown)
	}
	return nil
}

// capture copies the book's final state into result.
func capture(ctx context.Context, book *ledger.MemoryBook, result *Result) error {
	analytics, err := book.Analytics(ctx)
	if err != nil {
		return fmt.Errorf("failed to open analytics sheet: %w", err)
	}
	result.Counter, err = analytics.ReadCounter(ctx)
	if err != nil {
		return fmt.Errorf("failed to read counter: %w", err)
	}

	for _, name := range book.SheetNames() {
		sheet, _ := book.Lookup(name)
		result.Sheets[name] = sheet.Rows()
	}
	return nil
}
