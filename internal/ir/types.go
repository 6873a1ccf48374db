package ir

import "cmp"

// AgentID identifies an agent. Unique among agents for the lifetime of a run.
type AgentID int64

// LocationID identifies a location. Unique among locations for the lifetime of a run.
type LocationID int64

// Time is a simulation instant in seconds since the start of the run.
type Time = int64

// Message is the contract every routed record satisfies.
//
// Destination returns the id of the entity the record is addressed to.
// Compare orders two records by their routing key; records with equal
// destinations must compare contiguously (destination is the primary key).
type Message[M any] interface {
	Destination() int64
	Compare(other M) int
}

// HealthState tags the health of an agent at the time of a visit.
type HealthState uint8

const (
	Susceptible HealthState = iota
	Exposed
	Infectious
	Recovered
)

// HealthStates lists all health states in tag order.
var HealthStates = []HealthState{Susceptible, Exposed, Infectious, Recovered}

func (s HealthState) String() string {
	switch s {
	case Susceptible:
		return "susceptible"
	case Exposed:
		return "exposed"
	case Infectious:
		return "infectious"
	case Recovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// ExposureKind describes how an infection outcome came about.
type ExposureKind uint8

const (
	// ExposureNone reports a visit that produced no exposure.
	ExposureNone ExposureKind = iota
	// ExposureContact reports exposure through another agent at the location.
	ExposureContact
	// ExposureEnvironment reports exposure through the location itself.
	ExposureEnvironment
)

func (k ExposureKind) String() string {
	switch k {
	case ExposureNone:
		return "none"
	case ExposureContact:
		return "contact"
	case ExposureEnvironment:
		return "environment"
	default:
		return "unknown"
	}
}

// Exposure is the interval over which an agent was exposed.
type Exposure struct {
	Start    Time `json:"start"`
	Duration Time `json:"duration"`
}

// TestResult is the payload of a contact report.
type TestResult struct {
	Time     Time `json:"time"`
	Positive bool `json:"positive"`
}

// Visit records an agent's presence at a location over [Start, End).
type Visit struct {
	Location LocationID  `json:"location"`
	Agent    AgentID     `json:"agent"`
	Start    Time        `json:"start"`
	End      Time        `json:"end"`
	State    HealthState `json:"state"`
}

// Destination returns the visited location id.
func (v Visit) Destination() int64 { return int64(v.Location) }

// Duration returns End - Start.
func (v Visit) Duration() Time { return v.End - v.Start }

// Compare orders visits by (location, start, agent).
func (v Visit) Compare(o Visit) int {
	if c := cmp.Compare(v.Location, o.Location); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Start, o.Start); c != 0 {
		return c
	}
	return cmp.Compare(v.Agent, o.Agent)
}

// InfectionOutcome is the result of a location processing a visit, sent back
// to the visiting agent.
type InfectionOutcome struct {
	Agent    AgentID      `json:"agent"`
	Exposure Exposure     `json:"exposure"`
	Kind     ExposureKind `json:"kind"`
	Source   int64        `json:"source"`
}

// Destination returns the agent id.
func (o InfectionOutcome) Destination() int64 { return int64(o.Agent) }

// Compare orders outcomes by (agent, exposure start).
func (o InfectionOutcome) Compare(p InfectionOutcome) int {
	if c := cmp.Compare(o.Agent, p.Agent); c != 0 {
		return c
	}
	return cmp.Compare(o.Exposure.Start, p.Exposure.Start)
}

// ContactReport carries a test result from one agent to another it met.
type ContactReport struct {
	From   AgentID    `json:"from"`
	To     AgentID    `json:"to"`
	Result TestResult `json:"result"`
}

// Destination returns the receiving agent id.
func (r ContactReport) Destination() int64 { return int64(r.To) }

// Compare orders reports by (to, from).
func (r ContactReport) Compare(s ContactReport) int {
	if c := cmp.Compare(r.To, s.To); c != 0 {
		return c
	}
	return cmp.Compare(r.From, s.From)
}

// Timestep is a simulation window [Start, Start+Duration).
type Timestep struct {
	Start    Time `json:"start"`
	Duration Time `json:"duration"`
}

// End returns Start + Duration.
func (t Timestep) End() Time { return t.Start + t.Duration }

// Next returns the window immediately following t with the same duration.
func (t Timestep) Next() Timestep {
	return Timestep{Start: t.End(), Duration: t.Duration}
}

// Contains reports whether instant x lies inside the window.
func (t Timestep) Contains(x Time) bool {
	return x >= t.Start && x < t.End()
}
