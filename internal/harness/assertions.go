package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/flagsweep/internal/ir"
	"github.com/roach88/flagsweep/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			switch ev.Type {
			case EventStage:
				fmt.Fprintf(&buf, "  [%d] tick %d stage %s\n", i+1, ev.Tick, ev.Stage)
			case EventSweep:
				fmt.Fprintf(&buf, "  [%d] tick %d sweep %s %s %v\n", i+1, ev.Tick, ev.Priority, ev.Owner, ev.Flags)
			}
		}
	}

	return buf.String()
}

// AssertionContext provides journal access for sweep assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// assertStageOrder checks that stages ran in the given relative order.
// Stages don't need to be consecutive; each name matches its first
// occurrence.
func assertStageOrder(result *Result, a Assertion) error {
	stages := result.Stages(a.Tick)

	positions := make(map[string]int, len(a.Stages))
	for i, name := range stages {
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	for _, name := range a.Stages {
		if _, ok := positions[name]; !ok {
			return &AssertionError{
				Type:     AssertStageOrder,
				Expected: fmt.Sprintf("all stages present: %v", a.Stages),
				Actual:   fmt.Sprintf("missing stage: %s", name),
				Trace:    result.Trace,
			}
		}
	}

	for i := 1; i < len(a.Stages); i++ {
		prev, curr := a.Stages[i-1], a.Stages[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertStageOrder,
				Expected: fmt.Sprintf("stages in order: %v", a.Stages),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev]+1, curr, positions[curr]+1),
				Trace: result.Trace,
			}
		}
	}

	return nil
}

// assertStageCount checks that a stage ran exactly Count times.
func assertStageCount(result *Result, a Assertion) error {
	count := 0
	for _, name := range result.Stages(a.Tick) {
		if name == a.Stage {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertStageCount,
			Expected: fmt.Sprintf("%d calls of %s%s", a.Count, a.Stage, tickSuffix(a.Tick)),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSweepContains checks the journal for a sweep of Owner whose flag
// snapshot includes every flag in Flags.
func assertSweepContains(actx *AssertionContext, a Assertion) error {
	records, err := actx.Store.ReadSweeps(actx.Ctx, store.SweepFilter{Tick: a.Tick, OwnerID: a.Owner})
	if err != nil {
		return err
	}
	for _, rec := range records {
		if containsAll(rec.Flags, a.Flags) {
			return nil
		}
	}

	seen := make([]string, len(records))
	for i, rec := range records {
		seen[i] = fmt.Sprintf("tick %d %v", rec.Tick, rec.Flags)
	}
	return &AssertionError{
		Type:     AssertSweepContains,
		Expected: fmt.Sprintf("sweep of %s%s with flags %v", a.Owner, tickSuffix(a.Tick), a.Flags),
		Actual:   fmt.Sprintf("sweeps: %v", seen),
	}
}

// assertSweepCount counts journaled sweeps matching Owner, Priority and Tick.
func assertSweepCount(actx *AssertionContext, a Assertion) error {
	filter := store.SweepFilter{Tick: a.Tick, OwnerID: a.Owner}
	if a.Priority != "" {
		p, err := ir.ParsePriority(a.Priority)
		if err != nil {
			return fmt.Errorf("sweep_count: %w", err)
		}
		filter.Priority = p
	}
	records, err := actx.Store.ReadSweeps(actx.Ctx, filter)
	if err != nil {
		return err
	}
	if len(records) != a.Count {
		return &AssertionError{
			Type:     AssertSweepCount,
			Expected: fmt.Sprintf("%d sweeps (owner=%q priority=%q%s)", a.Count, a.Owner, a.Priority, tickSuffix(a.Tick)),
			Actual:   fmt.Sprintf("%d sweeps", len(records)),
		}
	}
	return nil
}

// assertPending checks the exact list of owners left pending.
func assertPending(result *Result, a Assertion) error {
	want := a.Owners
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(result.Pending, want) {
		return &AssertionError{
			Type:     AssertPending,
			Expected: fmt.Sprintf("pending %v", want),
			Actual:   fmt.Sprintf("pending %v", result.Pending),
		}
	}
	return nil
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func tickSuffix(tick *int64) string {
	if tick == nil {
		return ""
	}
	return fmt.Sprintf(" in tick %d", *tick)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for sweep assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStageOrder:
			err = assertStageOrder(result, assertion)
		case AssertStageCount:
			err = assertStageCount(result, assertion)
		case AssertSweepContains, AssertSweepCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires journal context", i, assertion.Type)
			} else if assertion.Type == AssertSweepContains {
				err = assertSweepContains(actx, assertion)
			} else {
				err = assertSweepCount(actx, assertion)
			}
		case AssertPending:
			err = assertPending(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
