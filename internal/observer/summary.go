package observer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/stepwise/internal/ir"
)

// SummarySink persists timestep summaries. Implemented by store.Store.
type SummarySink interface {
	WriteSummary(ctx context.Context, runID string, rec Record) error
}

// Record is one aggregated timestep with its digests.
type Record struct {
	Summary ir.Summary `json:"summary"`
	Digest  string     `json:"digest"`
	Chain   string     `json:"chain"`
}

// Summaries builds an ir.Summary per timestep, chains its digest into the
// run digest, keeps the records, and forwards them to an optional sink.
type Summaries struct {
	runID  string
	sink   SummarySink
	logger *slog.Logger

	mu      sync.Mutex
	records []Record
	chain   string
	factory Factory
}

// NewSummaries creates the factory. sink may be nil.
func NewSummaries(runID string, sink SummarySink, logger *slog.Logger) *Summaries {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Summaries{runID: runID, sink: sink, logger: logger}
	s.factory = NewFactory(s.newObserver, s.aggregate)
	return s
}

// Factory returns the factory to register with a Manager.
func (s *Summaries) Factory() Factory { return s.factory }

// Records returns a copy of the records aggregated so far.
func (s *Summaries) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Chain returns the running digest over all aggregated timesteps.
func (s *Summaries) Chain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain
}

type summaryObserver struct {
	ir.Summary
}

func (s *Summaries) newObserver(ts ir.Timestep) *summaryObserver {
	return &summaryObserver{Summary: ir.Summary{Window: ts, StateCounts: make(map[string]int64)}}
}

func (o *summaryObserver) ObserveAgent(a AgentState, outcomes []ir.InfectionOutcome, reports []ir.ContactReport) {
	o.Agents++
	o.StateCounts[a.State().String()]++
	o.Outcomes += int64(len(outcomes))
	o.OutcomeSum += int64(a.ID()) * int64(len(outcomes))
	for _, out := range outcomes {
		if out.Kind != ir.ExposureNone {
			o.Exposures++
		}
	}
	o.Reports += int64(len(reports))
	for _, r := range reports {
		if r.Result.Positive {
			o.Positives++
		}
	}
}

func (o *summaryObserver) ObserveLocation(l LocationState, visits []ir.Visit) {
	o.Locations++
	o.Visits += int64(len(visits))
	o.VisitSum += int64(l.ID()) * int64(len(visits))
	for _, v := range visits {
		o.VisitTime += v.Duration()
	}
}

func (s *Summaries) aggregate(ctx context.Context, ts ir.Timestep, observers []*summaryObserver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := ir.Summary{
		Step:        int64(len(s.records)) + 1,
		Window:      ts,
		StateCounts: make(map[string]int64),
	}
	for _, o := range observers {
		sum.Merge(o.Summary)
	}

	digest, err := ir.SummaryDigest(sum)
	if err != nil {
		return fmt.Errorf("summary step %d: %w", sum.Step, err)
	}
	s.chain = ir.ChainDigest(s.chain, digest)
	rec := Record{Summary: sum, Digest: digest, Chain: s.chain}
	s.records = append(s.records, rec)

	s.logger.Debug("timestep summarized",
		"run_id", s.runID,
		"step", sum.Step,
		"outcomes", sum.Outcomes,
		"visits", sum.Visits,
		"digest", digest,
	)

	if s.sink == nil {
		return nil
	}
	if err := s.sink.WriteSummary(ctx, s.runID, rec); err != nil {
		return fmt.Errorf("write summary step %d: %w", sum.Step, err)
	}
	return nil
}
