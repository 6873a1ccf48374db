package engine

import (
	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
)

// Agent is a simulated individual. The engine calls its methods once per
// timestep in the order ProcessOutcomes, UpdateReports, ComputeVisits, always
// from a single goroutine at a time.
type Agent interface {
	observer.AgentState

	// ProcessOutcomes receives the infection outcomes addressed to the agent.
	ProcessOutcomes(ts ir.Timestep, outcomes []ir.InfectionOutcome)

	// UpdateReports receives the contact reports addressed to the agent and
	// may send reports to other agents.
	UpdateReports(ts ir.Timestep, reports []ir.ContactReport, out broker.Broker[ir.ContactReport])

	// ComputeVisits sends the visits the agent makes during ts.
	ComputeVisits(ts ir.Timestep, visits broker.Broker[ir.Visit])
}

// Location is a fixed site agents visit.
type Location interface {
	observer.LocationState

	// ProcessVisits receives the visits made to the location during ts and
	// sends one outcome per affected agent.
	ProcessVisits(ts ir.Timestep, visits []ir.Visit, outcomes broker.Broker[ir.InfectionOutcome])
}

// DistributedManager gives a node access to the remote messenger of every
// message type. Implemented by transport.Node.
type DistributedManager interface {
	Visits() broker.RemoteMessenger[ir.Visit]
	Outcomes() broker.RemoteMessenger[ir.InfectionOutcome]
	Reports() broker.RemoteMessenger[ir.ContactReport]
}

// RunIDGenerator names simulation runs. Implemented by UUIDv7Generator
// (production) and testutil.FixedRunIDGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}
