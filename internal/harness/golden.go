package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stepwise/internal/ir"
)

// Snapshot renders the summary trace of a result as canonical JSON. It does
// not include the run id, strategy, or anything else that varies between
// equivalent runs.
func Snapshot(name string, r *Result) ([]byte, error) {
	steps := make(ir.Array, len(r.Records))
	for i, rec := range r.Records {
		obj := rec.Summary.Object()
		obj["digest"] = ir.String(rec.Digest)
		steps[i] = obj
	}
	return ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(name),
		"steps":    steps,
		"chain":    ir.String(r.Chain),
	})
}

// RunWithGolden executes a scenario and compares its summary trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the run fails. A golden mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario, opts RunOptions) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
