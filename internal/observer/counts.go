package observer

import (
	"context"
	"sync"

	"github.com/roach88/stepwise/internal/ir"
)

// ReportKey identifies a (recipient, sender) pair of contact reports.
type ReportKey struct {
	To   ir.AgentID
	From ir.AgentID
}

// Counts accumulates, over the whole run, how many messages every entity
// received. It is the reference observer for cross-strategy comparisons.
type Counts struct {
	mu       sync.Mutex
	outcomes map[ir.AgentID]int64
	visits   map[ir.LocationID]int64
	reports  map[ReportKey]int64
	steps    int
}

// NewCounts creates an empty counter.
func NewCounts() *Counts {
	return &Counts{
		outcomes: make(map[ir.AgentID]int64),
		visits:   make(map[ir.LocationID]int64),
		reports:  make(map[ReportKey]int64),
	}
}

type countObserver struct {
	outcomes map[ir.AgentID]int64
	visits   map[ir.LocationID]int64
	reports  map[ReportKey]int64
}

func (o *countObserver) ObserveAgent(a AgentState, outcomes []ir.InfectionOutcome, reports []ir.ContactReport) {
	o.outcomes[a.ID()] += int64(len(outcomes))
	for _, r := range reports {
		o.reports[ReportKey{To: r.To, From: r.From}]++
	}
}

func (o *countObserver) ObserveLocation(l LocationState, visits []ir.Visit) {
	o.visits[l.ID()] += int64(len(visits))
}

// MakeObserver implements Factory.
func (c *Counts) MakeObserver(ir.Timestep) Observer {
	return &countObserver{
		outcomes: make(map[ir.AgentID]int64),
		visits:   make(map[ir.LocationID]int64),
		reports:  make(map[ReportKey]int64),
	}
}

// Aggregate implements Factory.
func (c *Counts) Aggregate(_ context.Context, _ ir.Timestep, observers []Observer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range observers {
		co := o.(*countObserver)
		for id, n := range co.outcomes {
			c.outcomes[id] += n
		}
		for id, n := range co.visits {
			c.visits[id] += n
		}
		for k, n := range co.reports {
			c.reports[k] += n
		}
	}
	c.steps++
	return nil
}

// Outcomes returns the outcomes received by agent id so far.
func (c *Counts) Outcomes(id ir.AgentID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[id]
}

// Visits returns the visits received by location id so far.
func (c *Counts) Visits(id ir.LocationID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visits[id]
}

// Reports returns the reports agent to received from agent from so far.
func (c *Counts) Reports(to, from ir.AgentID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reports[ReportKey{To: to, From: from}]
}

// Steps returns how many timesteps were aggregated.
func (c *Counts) Steps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}

// Snapshot is a copy of all counters.
type Snapshot struct {
	Outcomes map[ir.AgentID]int64
	Visits   map[ir.LocationID]int64
	Reports  map[ReportKey]int64
}

// Snapshot copies the current counters.
func (c *Counts) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Outcomes: make(map[ir.AgentID]int64, len(c.outcomes)),
		Visits:   make(map[ir.LocationID]int64, len(c.visits)),
		Reports:  make(map[ReportKey]int64, len(c.reports)),
	}
	for k, v := range c.outcomes {
		s.Outcomes[k] = v
	}
	for k, v := range c.visits {
		s.Visits[k] = v
	}
	for k, v := range c.reports {
		s.Reports[k] = v
	}
	return s
}
