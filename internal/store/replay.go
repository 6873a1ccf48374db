package store

import (
	"context"
	"fmt"

	"github.com/roach88/stepwise/internal/ir"
)

// Verification is the result of recomputing a run's digests from its stored
// summaries.
type Verification struct {
	RunID string
	Steps int

	// FirstMismatch is the 1-based position of the first summary whose
	// stored digest, chain, or step number differs from the recomputed one,
	// or 0 if all match.
	FirstMismatch int64

	// Chain is the recomputed final chain digest.
	Chain string
}

// OK reports whether every stored digest matched.
func (v Verification) OK() bool { return v.FirstMismatch == 0 }

// VerifyRun recomputes the summary digests and chain of a run and compares
// them with what was stored, and with the run's final chain if it was
// completed.
func (s *Store) VerifyRun(ctx context.Context, runID string) (Verification, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return Verification{}, err
	}
	records, err := s.ReadSummaries(ctx, runID)
	if err != nil {
		return Verification{}, err
	}

	v := Verification{RunID: runID, Steps: len(records)}
	for i, rec := range records {
		digest, err := ir.SummaryDigest(rec.Summary)
		if err != nil {
			return Verification{}, fmt.Errorf("verify run %s step %d: %w", runID, rec.Summary.Step, err)
		}
		v.Chain = ir.ChainDigest(v.Chain, digest)
		if v.FirstMismatch == 0 && (digest != rec.Digest || v.Chain != rec.Chain || rec.Summary.Step != int64(i+1)) {
			v.FirstMismatch = int64(i + 1)
		}
	}
	if v.FirstMismatch == 0 && run.FinalChain != "" && run.FinalChain != v.Chain {
		v.FirstMismatch = int64(len(records))
	}
	return v, nil
}
