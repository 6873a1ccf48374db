package store

import (
	"context"
	"fmt"

	"github.com/roach88/stepwise/internal/observer"
)

// Run describes one simulation run.
type Run struct {
	ID            string `json:"id"`
	Scenario      string `json:"scenario"`
	Strategy      string `json:"strategy"`
	Workers       int    `json:"workers"`
	Nodes         int    `json:"nodes"`
	StepDuration  int64  `json:"step_duration"`
	EngineVersion string `json:"engine_version"`
	DigestVersion string `json:"digest_version"`

	// Steps and FinalChain are set by CompleteRun.
	Steps      int64  `json:"steps"`
	FinalChain string `json:"final_chain"`
}

var _ observer.SummarySink = (*Store)(nil)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, strategy, workers, nodes, step_duration, engine_version, digest_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scenario,
		run.Strategy,
		run.Workers,
		run.Nodes,
		run.StepDuration,
		run.EngineVersion,
		run.DigestVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteSummary appends one timestep summary of a run. Implements
// observer.SummarySink.
//
// Uses ON CONFLICT DO NOTHING for idempotency. The run must exist
// (foreign key constraint).
func (s *Store) WriteSummary(ctx context.Context, runID string, rec observer.Record) error {
	summaryJSON, err := marshalSummary(rec.Summary)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO timestep_summaries
		(run_id, step, start_time, duration, summary, digest, chain)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		rec.Summary.Step,
		rec.Summary.Window.Start,
		rec.Summary.Window.Duration,
		summaryJSON,
		rec.Digest,
		rec.Chain,
	)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// CompleteRun records how many steps a run took and its final chain digest.
func (s *Store) CompleteRun(ctx context.Context, runID string, steps int64, chain string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET steps = ?, final_chain = ? WHERE id = ?
	`, steps, chain, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("complete run %s: %w", runID, ErrNotFound)
	}
	return nil
}
