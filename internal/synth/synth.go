// Package synth builds deterministic synthetic populations for scenarios and
// tests.
//
// Agent i visits the VisitsPerStep locations following (i mod L) in id order
// every timestep and sends a report to the ReportsPerStep agents following
// it. Locations answer every visit with one outcome. A toy SEIR progression
// makes the observations non-trivial; it depends only on the set of messages
// an entity receives, never on their order within a destination, so every
// strategy produces the same states.
package synth

import (
	"fmt"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/ir"
)

// Config describes a population.
type Config struct {
	Agents         int
	Locations      int
	VisitsPerStep  int
	ReportsPerStep int

	// SeedEvery makes every agent whose id is a multiple of it start
	// infectious. 0 seeds nobody.
	SeedEvery int

	// InfectiousSteps is how many timesteps an agent stays infectious.
	// Default 3.
	InfectiousSteps int
}

// Validate checks that the routing pattern is well defined.
func (c Config) Validate() error {
	switch {
	case c.Agents < 1:
		return fmt.Errorf("agents must be positive, got %d", c.Agents)
	case c.Locations < 1:
		return fmt.Errorf("locations must be positive, got %d", c.Locations)
	case c.VisitsPerStep < 0 || c.VisitsPerStep > c.Locations:
		return fmt.Errorf("visits per step must be in [0, %d], got %d", c.Locations, c.VisitsPerStep)
	case c.ReportsPerStep < 0 || c.ReportsPerStep >= c.Agents:
		return fmt.Errorf("reports per step must be in [0, %d), got %d", c.Agents, c.ReportsPerStep)
	case c.SeedEvery < 0:
		return fmt.Errorf("seed interval must not be negative, got %d", c.SeedEvery)
	}
	return nil
}

// Population is a set of synthetic agents and locations with ids 0..n-1.
type Population struct {
	Config    Config
	Agents    []*Agent
	Locations []*Location
}

// New builds the population described by cfg.
func New(cfg Config) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.InfectiousSteps <= 0 {
		cfg.InfectiousSteps = 3
	}

	p := &Population{
		Config:    cfg,
		Agents:    make([]*Agent, cfg.Agents),
		Locations: make([]*Location, cfg.Locations),
	}
	for i := range p.Agents {
		a := &Agent{id: ir.AgentID(i), cfg: &p.Config, state: ir.Susceptible}
		if cfg.SeedEvery > 0 && i%cfg.SeedEvery == 0 {
			a.state = ir.Infectious
		}
		p.Agents[i] = a
	}
	for i := range p.Locations {
		p.Locations[i] = &Location{id: ir.LocationID(i)}
	}
	return p, nil
}

// Agent is a synthetic agent.
type Agent struct {
	id      ir.AgentID
	cfg     *Config
	state   ir.HealthState
	since   int
	test    ir.TestResult
	hasTest bool
}

// ID implements engine.Agent.
func (a *Agent) ID() ir.AgentID { return a.id }

// State implements engine.Agent.
func (a *Agent) State() ir.HealthState { return a.state }

// LatestTest implements engine.Agent.
func (a *Agent) LatestTest() (ir.TestResult, bool) { return a.test, a.hasTest }

// ProcessOutcomes advances the agent's health state.
func (a *Agent) ProcessOutcomes(_ ir.Timestep, outcomes []ir.InfectionOutcome) {
	a.since++
	switch a.state {
	case ir.Susceptible:
		for _, o := range outcomes {
			if o.Kind != ir.ExposureNone {
				a.state, a.since = ir.Exposed, 0
				break
			}
		}
	case ir.Exposed:
		a.state, a.since = ir.Infectious, 0
	case ir.Infectious:
		if a.since >= a.cfg.InfectiousSteps {
			a.state, a.since = ir.Recovered, 0
		}
	}
}

// UpdateReports tests the agent and reports the result to its fixed peers.
func (a *Agent) UpdateReports(ts ir.Timestep, _ []ir.ContactReport, out broker.Broker[ir.ContactReport]) {
	a.test = ir.TestResult{Time: ts.Start, Positive: a.state == ir.Infectious}
	a.hasTest = true

	n := a.cfg.ReportsPerStep
	if n == 0 {
		return
	}
	reports := make([]ir.ContactReport, n)
	for j := range reports {
		reports[j] = ir.ContactReport{
			From:   a.id,
			To:     ir.AgentID((int(a.id) + j + 1) % a.cfg.Agents),
			Result: a.test,
		}
	}
	out.Send(reports)
}

// ComputeVisits sends one visit per slot of the timestep.
func (a *Agent) ComputeVisits(ts ir.Timestep, out broker.Broker[ir.Visit]) {
	n := a.cfg.VisitsPerStep
	if n == 0 {
		return
	}
	slot := max(ts.Duration/ir.Time(n), 1)
	visits := make([]ir.Visit, n)
	for k := range visits {
		start := ts.Start + ir.Time(k)*slot
		visits[k] = ir.Visit{
			Location: ir.LocationID((int(a.id) + k) % a.cfg.Locations),
			Agent:    a.id,
			Start:    start,
			End:      start + slot,
			State:    a.state,
		}
	}
	out.Send(visits)
}

// Location is a synthetic location.
type Location struct {
	id ir.LocationID
}

// ID implements engine.Location.
func (l *Location) ID() ir.LocationID { return l.id }

// ProcessVisits answers every visit with one outcome. A visitor is exposed
// by contact when another visitor was infectious.
func (l *Location) ProcessVisits(_ ir.Timestep, visits []ir.Visit, out broker.Broker[ir.InfectionOutcome]) {
	if len(visits) == 0 {
		return
	}
	infectious := 0
	for _, v := range visits {
		if v.State == ir.Infectious {
			infectious++
		}
	}

	outcomes := make([]ir.InfectionOutcome, len(visits))
	for i, v := range visits {
		kind := ir.ExposureNone
		others := infectious
		if v.State == ir.Infectious {
			others--
		}
		if others > 0 {
			kind = ir.ExposureContact
		}
		outcomes[i] = ir.InfectionOutcome{
			Agent:    v.Agent,
			Exposure: ir.Exposure{Start: v.Start, Duration: v.Duration()},
			Kind:     kind,
			Source:   int64(l.id),
		}
	}
	out.Send(outcomes)
}
