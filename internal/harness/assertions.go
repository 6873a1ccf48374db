package harness

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluate checks one assertion against a finished run.
func evaluate(a Assertion, r *Result) error {
	switch a.Type {
	case AssertOutcomeCount:
		return assertOutcomeCount(a, r.Counts)
	case AssertVisitCount:
		return assertVisitCount(a, r.Counts)
	case AssertReportCount:
		return assertReportCount(a, r.Counts)
	case AssertTimestep:
		return assertTimestep(a, r.Final)
	case AssertSummary:
		return assertSummary(a, r.Records)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertOutcomeCount checks the outcomes received by one agent, or by every
// agent when none is named.
func assertOutcomeCount(a Assertion, c observer.Snapshot) error {
	if a.Agent != nil {
		return expectCount(AssertOutcomeCount, fmt.Sprintf("agent %d", *a.Agent), a.Expect, c.Outcomes[ir.AgentID(*a.Agent)])
	}
	return expectAll(AssertOutcomeCount, "agent", a.Expect, c.Outcomes, cmp.Compare[ir.AgentID])
}

// assertVisitCount checks the visits received by one location, or by every
// location when none is named.
func assertVisitCount(a Assertion, c observer.Snapshot) error {
	if a.Location != nil {
		return expectCount(AssertVisitCount, fmt.Sprintf("location %d", *a.Location), a.Expect, c.Visits[ir.LocationID(*a.Location)])
	}
	return expectAll(AssertVisitCount, "location", a.Expect, c.Visits, cmp.Compare[ir.LocationID])
}

// assertReportCount checks the reports one agent received from another. If
// either side is omitted, every observed pair matching the other side must
// have the expected count.
func assertReportCount(a Assertion, c observer.Snapshot) error {
	if a.Agent != nil && a.From != nil {
		key := observer.ReportKey{To: ir.AgentID(*a.Agent), From: ir.AgentID(*a.From)}
		return expectCount(AssertReportCount, fmt.Sprintf("reports to %d from %d", key.To, key.From), a.Expect, c.Reports[key])
	}

	matched := make(map[observer.ReportKey]int64)
	for k, v := range c.Reports {
		if a.Agent != nil && k.To != ir.AgentID(*a.Agent) {
			continue
		}
		if a.From != nil && k.From != ir.AgentID(*a.From) {
			continue
		}
		matched[k] = v
	}
	return expectAll(AssertReportCount, "pair", a.Expect, matched, compareReportKeys)
}

func assertTimestep(a Assertion, ts ir.Timestep) error {
	if a.Start != nil && *a.Start != ts.Start {
		return &AssertionError{
			Type:     AssertTimestep,
			Expected: fmt.Sprintf("start %d", *a.Start),
			Actual:   fmt.Sprintf("start %d", ts.Start),
		}
	}
	if a.End != nil && *a.End != ts.End() {
		return &AssertionError{
			Type:     AssertTimestep,
			Expected: fmt.Sprintf("end %d", *a.End),
			Actual:   fmt.Sprintf("end %d", ts.End()),
		}
	}
	return nil
}

func assertSummary(a Assertion, records []observer.Record) error {
	if a.Step < 1 || a.Step > len(records) {
		return &AssertionError{
			Type:     AssertSummary,
			Expected: fmt.Sprintf("summary of step %d", a.Step),
			Actual:   fmt.Sprintf("%d steps recorded", len(records)),
		}
	}
	obj := records[a.Step-1].Summary.Object()
	v, ok := obj[a.Field].(ir.Int)
	if !ok {
		return fmt.Errorf("summary has no integer field %q", a.Field)
	}
	return expectCount(AssertSummary, fmt.Sprintf("step %d %s", a.Step, a.Field), a.Expect, int64(v))
}

func expectCount(typ, what string, expect, actual int64) error {
	if expect == actual {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%s = %d", what, expect),
		Actual:   fmt.Sprintf("%s = %d", what, actual),
	}
}

// expectAll requires a non-empty set whose every value equals expect. The
// first mismatch in key order is reported.
func expectAll[K comparable](typ, what string, expect int64, counts map[K]int64, compare func(a, b K) int) error {
	if len(counts) == 0 {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("every %s = %d", what, expect),
			Actual:   "nothing observed",
		}
	}
	for _, k := range slices.SortedFunc(maps.Keys(counts), compare) {
		if counts[k] != expect {
			return &AssertionError{
				Type:     typ,
				Expected: fmt.Sprintf("every %s = %d", what, expect),
				Actual:   fmt.Sprintf("%s %v = %d", what, k, counts[k]),
			}
		}
	}
	return nil
}

func compareReportKeys(a, b observer.ReportKey) int {
	if c := cmp.Compare(a.To, b.To); c != 0 {
		return c
	}
	return cmp.Compare(a.From, b.From)
}
