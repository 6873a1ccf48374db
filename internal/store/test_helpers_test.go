package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id string) Run {
	return Run{
		ID:            id,
		Scenario:      "test",
		Strategy:      "serial",
		Workers:       1,
		Nodes:         1,
		StepDuration:  10,
		EngineVersion: ir.EngineVersion,
		DigestVersion: ir.DigestVersion,
	}
}

// createTestRecords builds n chained records the way observer.Summaries does.
func createTestRecords(t *testing.T, n int) []observer.Record {
	t.Helper()
	var records []observer.Record
	chain := ""
	for i := 1; i <= n; i++ {
		sum := ir.Summary{
			Step:        int64(i),
			Window:      ir.Timestep{Start: int64(i-1) * 10, Duration: 10},
			Agents:      4,
			Locations:   2,
			Outcomes:    int64(i * 3),
			Visits:      int64(i * 2),
			VisitTime:   40,
			StateCounts: map[string]int64{"susceptible": 3, "infectious": 1},
		}
		digest := ir.MustSummaryDigest(sum)
		chain = ir.ChainDigest(chain, digest)
		records = append(records, observer.Record{Summary: sum, Digest: digest, Chain: chain})
	}
	return records
}

// writeTestRun stores a run with n summaries and completes it.
func writeTestRun(t *testing.T, s *Store, id string, n int) []observer.Record {
	t.Helper()
	ctx := context.Background()
	if err := s.WriteRun(ctx, createTestRun(id)); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	records := createTestRecords(t, n)
	for _, rec := range records {
		if err := s.WriteSummary(ctx, id, rec); err != nil {
			t.Fatalf("WriteSummary() failed: %v", err)
		}
	}
	if n > 0 {
		if err := s.CompleteRun(ctx, id, int64(n), records[n-1].Chain); err != nil {
			t.Fatalf("CompleteRun() failed: %v", err)
		}
	}
	return records
}
