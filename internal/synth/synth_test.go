package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/testutil"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Agents: 4, Locations: 4, VisitsPerStep: 2, ReportsPerStep: 3}, ""},
		{"no agents", Config{Locations: 1}, "agents must be positive"},
		{"no locations", Config{Agents: 1}, "locations must be positive"},
		{"too many visits", Config{Agents: 1, Locations: 2, VisitsPerStep: 3}, "visits per step"},
		{"reports to self", Config{Agents: 2, Locations: 1, ReportsPerStep: 2}, "reports per step"},
		{"negative seed", Config{Agents: 1, Locations: 1, SeedEvery: -1}, "seed interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAgent_ComputeVisitsRoundRobin(t *testing.T) {
	p, err := New(Config{Agents: 8, Locations: 8, VisitsPerStep: 3})
	require.NoError(t, err)

	rec := testutil.NewRecorder[ir.Visit]()
	p.Agents[6].ComputeVisits(ir.Timestep{Start: 100, Duration: 30}, rec)

	got := rec.Messages()
	require.Len(t, got, 3)
	locs := []ir.LocationID{got[0].Location, got[1].Location, got[2].Location}
	assert.Equal(t, []ir.LocationID{6, 7, 0}, locs)
	for k, v := range got {
		assert.Equal(t, ir.Time(100+10*k), v.Start)
		assert.Equal(t, ir.Time(10), v.Duration())
		assert.Equal(t, ir.AgentID(6), v.Agent)
	}
}

func TestAgent_ShortTimestepStillPositive(t *testing.T) {
	p, err := New(Config{Agents: 1, Locations: 4, VisitsPerStep: 4})
	require.NoError(t, err)

	rec := testutil.NewRecorder[ir.Visit]()
	p.Agents[0].ComputeVisits(ir.Timestep{Duration: 1}, rec)
	for _, v := range rec.Messages() {
		assert.Positive(t, v.Duration())
	}
}

func TestAgent_ReportsToFixedPeers(t *testing.T) {
	p, err := New(Config{Agents: 5, Locations: 1, ReportsPerStep: 3, SeedEvery: 4})
	require.NoError(t, err)

	rec := testutil.NewRecorder[ir.ContactReport]()
	a := p.Agents[4]
	a.UpdateReports(ir.Timestep{Start: 20, Duration: 10}, nil, rec)

	got := rec.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, []ir.AgentID{0, 1, 2}, []ir.AgentID{got[0].To, got[1].To, got[2].To})
	for _, r := range got {
		assert.Equal(t, ir.AgentID(4), r.From)
		assert.Equal(t, ir.TestResult{Time: 20, Positive: true}, r.Result)
	}

	test, ok := a.LatestTest()
	assert.True(t, ok)
	assert.True(t, test.Positive)
}

func TestAgent_Progression(t *testing.T) {
	p, err := New(Config{Agents: 1, Locations: 1, InfectiousSteps: 2})
	require.NoError(t, err)
	a := p.Agents[0]
	ts := ir.Timestep{Duration: 1}

	a.ProcessOutcomes(ts, []ir.InfectionOutcome{{Kind: ir.ExposureNone}})
	assert.Equal(t, ir.Susceptible, a.State())

	a.ProcessOutcomes(ts, []ir.InfectionOutcome{{Kind: ir.ExposureNone}, {Kind: ir.ExposureContact}})
	assert.Equal(t, ir.Exposed, a.State())

	a.ProcessOutcomes(ts, nil)
	assert.Equal(t, ir.Infectious, a.State())

	a.ProcessOutcomes(ts, nil)
	assert.Equal(t, ir.Infectious, a.State())
	a.ProcessOutcomes(ts, nil)
	assert.Equal(t, ir.Recovered, a.State())
}

func TestLocation_OneOutcomePerVisit(t *testing.T) {
	l := &Location{id: 3}
	rec := testutil.NewRecorder[ir.InfectionOutcome]()
	visits := []ir.Visit{
		{Location: 3, Agent: 1, Start: 0, End: 5, State: ir.Infectious},
		{Location: 3, Agent: 2, Start: 0, End: 5, State: ir.Susceptible},
	}
	l.ProcessVisits(ir.Timestep{Duration: 10}, visits, rec)

	got := rec.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, ir.ExposureNone, got[0].Kind, "an infectious visitor alone is not exposed")
	assert.Equal(t, ir.ExposureContact, got[1].Kind)
	assert.Equal(t, ir.Exposure{Start: 0, Duration: 5}, got[1].Exposure)
	assert.Equal(t, int64(3), got[1].Source)

	rec.Reset()
	l.ProcessVisits(ir.Timestep{}, nil, rec)
	assert.Zero(t, rec.Batches())
}
