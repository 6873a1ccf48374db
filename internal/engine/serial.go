package engine

import (
	"context"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/ir"
)

// Serial runs both phases on the calling goroutine over double-buffered
// queues.
type Serial struct {
	base

	visits   *broker.DoubleBuffer[ir.Visit]
	outcomes *broker.DoubleBuffer[ir.InfectionOutcome]
	reports  *broker.DoubleBuffer[ir.ContactReport]
}

var _ Simulation = (*Serial)(nil)

// NewSerial creates a serial strategy over agents and locations. The slices
// are copied and sorted by id; duplicate ids are fatal.
func NewSerial(agents []Agent, locations []Location, opts ...Option) *Serial {
	return &Serial{
		base:     newBase("serial", agents, locations, newConfig(opts)),
		visits:   broker.NewDoubleBuffer[ir.Visit]("visit"),
		outcomes: broker.NewDoubleBuffer[ir.InfectionOutcome]("outcome"),
		reports:  broker.NewDoubleBuffer[ir.ContactReport]("report"),
	}
}

// Step runs n timesteps of duration d.
func (s *Serial) Step(ctx context.Context, n int, d ir.Time) error {
	return s.run(ctx, n, d, s.step)
}

func (s *Serial) step(ts ir.Timestep) {
	s.agentPhase(ts)
	s.locationPhase(ts)
}

func (s *Serial) agentPhase(ts ir.Timestep) {
	outcomes := s.outcomes.Consume()
	defer outcomes.Release()
	reports := s.reports.Consume()
	defer reports.Release()

	s.logger.Debug("agent phase",
		"timestep", ts.Start,
		"outcomes", len(outcomes.Messages()),
		"reports", len(reports.Messages()),
	)
	runAgents(ts, s.agents, outcomes.Messages(), reports.Messages(),
		s.observers.NewShard(ts), s.visits, s.reports)
}

func (s *Serial) locationPhase(ts ir.Timestep) {
	visits := s.visits.Consume()
	defer visits.Release()

	s.logger.Debug("location phase",
		"timestep", ts.Start,
		"visits", len(visits.Messages()),
	)
	runLocations(ts, s.locations, visits.Messages(), s.observers.NewShard(ts), s.outcomes)
}
