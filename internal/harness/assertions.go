package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/occgraph/internal/occ"
	"github.com/roach88/occgraph/internal/pattern"
)

// AssertionContext provides the store the final-state assertions read.
type AssertionContext struct {
	Store *occ.Store
	Ctx   context.Context
}

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

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Tx, event.Op)
			if len(event.Args) > 0 {
				fmt.Fprintf(&buf, " %s", strings.Join(event.Args, " "))
			}
			if event.Query != "" {
				fmt.Fprintf(&buf, " %s", event.Query)
			}
			fmt.Fprintf(&buf, " -> %s\n", event.Outcome)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. Trace assertions need no context; store assertions are skipped
// with an error when actx is nil.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertGeneration:
		if result.Final.Generation != a.Generation {
			return &AssertionError{
				Type:     AssertGeneration,
				Expected: fmt.Sprintf("generation %d", a.Generation),
				Actual:   fmt.Sprintf("generation %d", result.Final.Generation),
			}
		}
		return nil
	}

	if actx == nil || actx.Store == nil {
		return fmt.Errorf("%s assertion needs a store", a.Type)
	}
	switch a.Type {
	case AssertContains, AssertAbsent:
		return assertPresence(actx, a)
	case AssertCount:
		return assertCount(actx, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

// assertTraceCount checks how many steps ended with the given outcome.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Outcome == a.Outcome {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d steps with outcome %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

func assertPresence(actx *AssertionContext, a Assertion) error {
	st, err := ParseStatement(a.Statement)
	if err != nil {
		return err
	}
	p := pattern.FromTerms(st.Subject, st.Predicate, st.Object, st.Context)
	if st.Context == nil {
		p = p.InContext(pattern.DefaultGraph())
	}
	n, err := actx.Store.Size(actx.Ctx, p)
	if err != nil {
		return err
	}

	want := a.Type == AssertContains
	if (n > 0) != want {
		expected, actual := "present", "absent"
		if !want {
			expected, actual = actual, expected
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s %s", st, expected),
			Actual:   actual,
		}
	}
	return nil
}

func assertCount(actx *AssertionContext, a Assertion) error {
	p, err := ParsePattern(a.Pattern)
	if err != nil {
		return err
	}
	n, err := actx.Store.Size(actx.Ctx, p)
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d statements matching %s", a.Count, p),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}
