package engine

import (
	"slices"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/invariant"
	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
)

// sortMessages orders msgs by their routing key. Stable, so messages with
// equal keys keep their arrival order.
func sortMessages[M ir.Message[M]](msgs []M) {
	slices.SortStableFunc(msgs, func(a, b M) int { return a.Compare(b) })
}

// span walks a sorted message slice handing out the contiguous sub-range of
// each destination in ascending order.
type span[M ir.Message[M]] struct {
	kind string
	msgs []M
	pos  int
}

func newSpan[M ir.Message[M]](kind string, msgs []M) *span[M] {
	return &span[M]{kind: kind, msgs: msgs}
}

// take returns the messages destined to id. Destinations below id that were
// never taken belong to no entity of the walk and are fatal.
func (s *span[M]) take(id int64) []M {
	if s.pos < len(s.msgs) {
		if dst := s.msgs[s.pos].Destination(); dst < id {
			invariant.Fail(invariant.ErrCodeLeftoverMessages, s.kind, dst,
				"message skipped by the entity walk (next entity %d)", id)
		}
	}
	lo := s.pos
	for s.pos < len(s.msgs) && s.msgs[s.pos].Destination() == id {
		s.pos++
	}
	return s.msgs[lo:s.pos:s.pos]
}

// finish asserts that every message was taken.
func (s *span[M]) finish() {
	if s.pos < len(s.msgs) {
		invariant.Fail(invariant.ErrCodeLeftoverMessages, s.kind, s.msgs[s.pos].Destination(),
			"%d messages left after the entity walk", len(s.msgs)-s.pos)
	}
}

// visitCheck rejects visits that do not last before they reach a queue.
type visitCheck struct {
	next broker.Broker[ir.Visit]
}

func (c visitCheck) Send(batch []ir.Visit) {
	for _, v := range batch {
		if v.End <= v.Start {
			invariant.Fail(invariant.ErrCodeNonPositiveVisit, "visit", int64(v.Agent),
				"visit to location %d lasts %d", v.Location, v.Duration())
		}
	}
	c.next.Send(batch)
}

// runAgents performs the agent phase for a sorted run of agents whose
// outcomes and reports are sorted and contain nothing for other agents.
func runAgents(
	ts ir.Timestep,
	agents []Agent,
	outcomes []ir.InfectionOutcome,
	reports []ir.ContactReport,
	shard *observer.Shard,
	visitOut broker.Broker[ir.Visit],
	reportOut broker.Broker[ir.ContactReport],
) {
	sortMessages(outcomes)
	sortMessages(reports)
	outs := newSpan("outcome", outcomes)
	reps := newSpan("report", reports)
	visits := visitCheck{next: visitOut}

	for _, a := range agents {
		id := int64(a.ID())
		o := outs.take(id)
		r := reps.take(id)

		shard.ObserveAgent(a, o, r)
		a.ProcessOutcomes(ts, o)
		a.UpdateReports(ts, r, reportOut)
		a.ComputeVisits(ts, visits)
	}

	outs.finish()
	reps.finish()
}

// runLocations performs the location phase for a sorted run of locations.
func runLocations(
	ts ir.Timestep,
	locations []Location,
	visits []ir.Visit,
	shard *observer.Shard,
	outcomeOut broker.Broker[ir.InfectionOutcome],
) {
	sortMessages(visits)
	vs := newSpan("visit", visits)

	for _, l := range locations {
		v := vs.take(int64(l.ID()))
		shard.ObserveLocation(l, v)
		l.ProcessVisits(ts, v, outcomeOut)
	}

	vs.finish()
}
