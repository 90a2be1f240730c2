package harness

import (
	"fmt"
	"sort"
	"strings"
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
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describeEvent(event))
		}
	}

	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	switch ev.Type {
	case EventStep:
		if ev.Error != "" {
			return fmt.Sprintf("step %d %s -> error %s", ev.Step, ev.Action, ev.Error)
		}
		if ev.Valid != nil {
			return fmt.Sprintf("step %d %s -> valid=%t", ev.Step, ev.Action, *ev.Valid)
		}
		return fmt.Sprintf("step %d %s -> variation %d", ev.Step, ev.Action, ev.Variation)
	case EventWarning:
		return fmt.Sprintf("warning %q", ev.Message)
	default:
		return fmt.Sprintf("%s variation %d (seq %d)", ev.Type, ev.Variation, ev.Seq)
	}
}

// assertWarningContains checks that some warning contains the text.
func assertWarningContains(result *Result, assertion Assertion) error {
	warnings := result.Warnings()
	for _, w := range warnings {
		if strings.Contains(w, assertion.Text) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertWarningContains,
		Expected: fmt.Sprintf("a warning containing %q", assertion.Text),
		Actual:   fmt.Sprintf("warnings %q", warnings),
		Trace:    result.Trace,
	}
}

// assertVariationOrder checks that variations were committed in the given
// order. Commits don't need to be consecutive.
func assertVariationOrder(result *Result, assertion Assertion) error {
	commits := result.Commits()

	next := 0
	for _, id := range commits {
		if next < len(assertion.Variations) && id == assertion.Variations[next] {
			next++
		}
	}
	if next == len(assertion.Variations) {
		return nil
	}

	return &AssertionError{
		Type:     AssertVariationOrder,
		Expected: fmt.Sprintf("commits in order: %v", assertion.Variations),
		Actual: fmt.Sprintf("commits %v, missing %d after %v",
			commits, assertion.Variations[next], assertion.Variations[:next]),
		Trace: result.Trace,
	}
}

// assertCommitCount checks the number of commits, of one variation if set.
func assertCommitCount(result *Result, assertion Assertion) error {
	count := 0
	for _, id := range result.Commits() {
		if assertion.Variation == 0 || id == assertion.Variation {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}

	what := "commits"
	if assertion.Variation != 0 {
		what = fmt.Sprintf("commits of variation %d", assertion.Variation)
	}
	return &AssertionError{
		Type:     AssertCommitCount,
		Expected: fmt.Sprintf("%d %s", assertion.Count, what),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Trace:    result.Trace,
	}
}

// assertFinalState checks the store after the last step.
// Selection uses subset semantics: only listed attributes are compared.
func assertFinalState(result *Result, assertion Assertion) error {
	final := result.Final

	keys := make([]int64, 0, len(assertion.Selection))
	for k := range assertion.Selection {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, attr := range keys {
		want := assertion.Selection[attr]
		got, ok := final.Selection[attr]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("attribute %d = %d", attr, want),
				Actual:   fmt.Sprintf("attribute %d is not part of the product", attr),
			}
		}
		if got != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("attribute %d = %d", attr, want),
				Actual:   fmt.Sprintf("attribute %d = %d", attr, got),
			}
		}
	}

	if assertion.Unit != 0 && assertion.Unit != final.Unit {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("unit %d", assertion.Unit),
			Actual:   fmt.Sprintf("unit %d", final.Unit),
		}
	}

	if assertion.Selected != nil && *assertion.Selected != final.Selected {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("variation selected = %t", *assertion.Selected),
			Actual:   fmt.Sprintf("variation selected = %t", final.Selected),
		}
	}

	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertWarningContains:
			err = assertWarningContains(result, assertion)
		case AssertVariationOrder:
			err = assertVariationOrder(result, assertion)
		case AssertCommitCount:
			err = assertCommitCount(result, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
