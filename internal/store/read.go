package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stepwise/internal/observer"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// ReadRun returns the run with the given id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, strategy, workers, nodes, step_duration,
		       engine_version, digest_version, steps, final_chain
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, strategy, workers, nodes, step_duration,
		       engine_version, digest_version, steps, final_chain
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadSummaries returns the summaries of a run ordered by step.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadSummaries(ctx context.Context, runID string) ([]observer.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT summary, digest, chain
		FROM timestep_summaries
		WHERE run_id = ?
		ORDER BY step ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	records := []observer.Record{}
	for rows.Next() {
		var summaryJSON string
		var rec observer.Record
		if err := rows.Scan(&summaryJSON, &rec.Digest, &rec.Chain); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		rec.Summary, err = unmarshalSummary(summaryJSON)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return records, nil
}

// FindRunsWithDigest returns the ids of runs having a timestep with the
// given summary digest, ordered by id.
func (s *Store) FindRunsWithDigest(ctx context.Context, digest string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT run_id
		FROM timestep_summaries
		WHERE digest = ?
		ORDER BY run_id COLLATE BINARY ASC
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("query digest: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run ids: %w", err)
	}
	return ids, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.Strategy,
		&run.Workers,
		&run.Nodes,
		&run.StepDuration,
		&run.EngineVersion,
		&run.DigestVersion,
		&run.Steps,
		&run.FinalChain,
	)
	return run, err
}
