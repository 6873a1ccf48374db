package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/invariant"
	"github.com/roach88/stepwise/internal/ir"
)

// scriptedAgent sends fixed messages and records the order of calls.
type scriptedAgent struct {
	id      ir.AgentID
	visits  []ir.Visit
	reports []ir.ContactReport
	calls   []string
}

func (a *scriptedAgent) ID() ir.AgentID                    { return a.id }
func (a *scriptedAgent) State() ir.HealthState             { return ir.Susceptible }
func (a *scriptedAgent) LatestTest() (ir.TestResult, bool) { return ir.TestResult{}, false }

func (a *scriptedAgent) ProcessOutcomes(ir.Timestep, []ir.InfectionOutcome) {
	a.calls = append(a.calls, "outcomes")
}

func (a *scriptedAgent) UpdateReports(_ ir.Timestep, _ []ir.ContactReport, out broker.Broker[ir.ContactReport]) {
	a.calls = append(a.calls, "reports")
	if len(a.reports) > 0 {
		out.Send(a.reports)
	}
}

func (a *scriptedAgent) ComputeVisits(_ ir.Timestep, out broker.Broker[ir.Visit]) {
	a.calls = append(a.calls, "visits")
	if len(a.visits) > 0 {
		out.Send(a.visits)
	}
}

type quietLocation ir.LocationID

func (l quietLocation) ID() ir.LocationID { return ir.LocationID(l) }

func (l quietLocation) ProcessVisits(ir.Timestep, []ir.Visit, broker.Broker[ir.InfectionOutcome]) {}

var localStrategies = []string{"serial", "parallel"}

func newStrategy(t *testing.T, name string, agents []Agent, locations []Location) Simulation {
	t.Helper()
	switch name {
	case "serial":
		return NewSerial(agents, locations, WithLogger(discardLogger()))
	case "parallel":
		p := NewParallel(agents, locations, WithWorkers(2), WithChunkSize(1), WithLogger(discardLogger()))
		t.Cleanup(p.Close)
		return p
	}
	t.Fatalf("unknown strategy %q", name)
	return nil
}

func TestAgent_CallOrder(t *testing.T) {
	a := &scriptedAgent{id: 1}
	sim := NewSerial([]Agent{a}, []Location{quietLocation(1)}, WithLogger(discardLogger()))
	require.NoError(t, sim.Step(context.Background(), 2, 10))
	assert.Equal(t, []string{"outcomes", "reports", "visits", "outcomes", "reports", "visits"}, a.calls)
}

func TestVisitToUnknownLocationIsFatal(t *testing.T) {
	for _, name := range localStrategies {
		t.Run(name, func(t *testing.T) {
			agents := []Agent{&scriptedAgent{id: 1, visits: []ir.Visit{{Location: 99, Agent: 1, Start: 0, End: 5}}}}
			sim := newStrategy(t, name, agents, []Location{quietLocation(1), quietLocation(2)})

			err := invariant.Capture(func() { _ = sim.Step(context.Background(), 1, 10) })
			require.NotNil(t, err)
			assert.Contains(t,
				[]invariant.Code{invariant.ErrCodeLeftoverMessages, invariant.ErrCodeUnknownDestination},
				err.Code)
			assert.Equal(t, int64(99), err.ID)
		})
	}
}

func TestViolationLoggedWithStrategyLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With("run_id", "run-1")
	agents := []Agent{&scriptedAgent{id: 1, visits: []ir.Visit{{Location: 99, Agent: 1, Start: 0, End: 5}}}}
	sim := NewSerial(agents, []Location{quietLocation(1)}, WithStart(40), WithLogger(logger))

	err := invariant.Capture(func() { _ = sim.Step(context.Background(), 1, 10) })
	require.NotNil(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "timestep aborted", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "serial", entry["strategy"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, float64(40), entry["timestep"])
	assert.Equal(t, string(err.Code), entry["code"])
	assert.Equal(t, float64(99), entry["id"])
}

func TestVisitBelowFirstLocationIsFatal(t *testing.T) {
	agents := []Agent{&scriptedAgent{id: 1, visits: []ir.Visit{{Location: 1, Agent: 1, Start: 0, End: 5}}}}
	sim := NewSerial(agents, []Location{quietLocation(5)}, WithLogger(discardLogger()))

	err := invariant.Capture(func() { _ = sim.Step(context.Background(), 1, 10) })
	require.NotNil(t, err)
	assert.Equal(t, invariant.ErrCodeLeftoverMessages, err.Code)
	assert.Equal(t, int64(1), err.ID)
}

func TestReportToUnknownAgentIsFatal(t *testing.T) {
	for _, name := range localStrategies {
		t.Run(name, func(t *testing.T) {
			agents := []Agent{&scriptedAgent{id: 1, reports: []ir.ContactReport{{From: 1, To: 7}}}}
			sim := newStrategy(t, name, agents, []Location{quietLocation(1)})

			// Serial only notices when the reports are walked next timestep.
			err := invariant.Capture(func() { _ = sim.Step(context.Background(), 2, 10) })
			require.NotNil(t, err)
			assert.Equal(t, int64(7), err.ID)
		})
	}
}

func TestNonPositiveVisitIsFatal(t *testing.T) {
	for _, name := range localStrategies {
		t.Run(name, func(t *testing.T) {
			agents := []Agent{&scriptedAgent{id: 3, visits: []ir.Visit{{Location: 1, Agent: 3, Start: 5, End: 5}}}}
			sim := newStrategy(t, name, agents, []Location{quietLocation(1)})

			err := invariant.Capture(func() { _ = sim.Step(context.Background(), 1, 10) })
			require.NotNil(t, err)
			assert.Equal(t, invariant.ErrCodeNonPositiveVisit, err.Code)
			assert.Equal(t, "visit", err.Kind)
			assert.Equal(t, int64(3), err.ID)
		})
	}
}

func TestDuplicateEntityIsFatal(t *testing.T) {
	err := invariant.Capture(func() {
		NewSerial([]Agent{&scriptedAgent{id: 2}, &scriptedAgent{id: 2}}, nil)
	})
	require.NotNil(t, err)
	assert.Equal(t, invariant.ErrCodeUnsortedEntities, err.Code)
	assert.Equal(t, "agent", err.Kind)
}

func TestEntitiesAreSortedAtConstruction(t *testing.T) {
	a1, a2, a3 := &scriptedAgent{id: 1}, &scriptedAgent{id: 2}, &scriptedAgent{id: 3}
	sim := NewSerial([]Agent{a3, a1, a2}, []Location{quietLocation(9), quietLocation(4)}, WithLogger(discardLogger()))

	require.Len(t, sim.agents, 3)
	for i, want := range []ir.AgentID{1, 2, 3} {
		assert.Equal(t, want, sim.agents[i].ID())
	}
	assert.Equal(t, ir.LocationID(4), sim.locations[0].ID())
}

func TestSpan_TakesContiguousRanges(t *testing.T) {
	msgs := []ir.InfectionOutcome{
		{Agent: 5, Exposure: ir.Exposure{Start: 2}},
		{Agent: 2},
		{Agent: 5, Exposure: ir.Exposure{Start: 1}},
		{Agent: 2},
	}
	sortMessages(msgs)
	s := newSpan("outcome", msgs)

	assert.Len(t, s.take(2), 2)
	assert.Empty(t, s.take(3))
	five := s.take(5)
	require.Len(t, five, 2)
	assert.Equal(t, ir.Time(1), five[0].Exposure.Start)
	assert.Nil(t, invariant.Capture(s.finish))
}
