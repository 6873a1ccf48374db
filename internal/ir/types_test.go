package ir

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisit_CompareOrdersByLocationStartAgent(t *testing.T) {
	visits := []Visit{
		{Location: 2, Agent: 1, Start: 0, End: 10},
		{Location: 1, Agent: 9, Start: 5, End: 10},
		{Location: 1, Agent: 3, Start: 5, End: 10},
		{Location: 1, Agent: 7, Start: 0, End: 10},
	}
	slices.SortStableFunc(visits, Visit.Compare)

	got := make([][2]int64, len(visits))
	for i, v := range visits {
		got[i] = [2]int64{int64(v.Location), int64(v.Agent)}
	}
	assert.Equal(t, [][2]int64{{1, 7}, {1, 3}, {1, 9}, {2, 1}}, got)
}

func TestInfectionOutcome_CompareOrdersByAgentThenExposureStart(t *testing.T) {
	a := InfectionOutcome{Agent: 1, Exposure: Exposure{Start: 50}}
	b := InfectionOutcome{Agent: 1, Exposure: Exposure{Start: 10}}
	c := InfectionOutcome{Agent: 0, Exposure: Exposure{Start: 99}}

	assert.Equal(t, 1, a.Compare(b))
	assert.Equal(t, -1, c.Compare(b))
	assert.Equal(t, 0, a.Compare(a))
}

func TestContactReport_CompareOrdersByToThenFrom(t *testing.T) {
	a := ContactReport{From: 4, To: 1}
	b := ContactReport{From: 2, To: 1}
	c := ContactReport{From: 1, To: 2}

	assert.Equal(t, 1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
}

func TestDestination(t *testing.T) {
	assert.Equal(t, int64(3), Visit{Location: 3, Agent: 8}.Destination())
	assert.Equal(t, int64(8), InfectionOutcome{Agent: 8}.Destination())
	assert.Equal(t, int64(5), ContactReport{From: 4, To: 5}.Destination())
}

func TestVisit_Duration(t *testing.T) {
	assert.Equal(t, Time(30), Visit{Start: 10, End: 40}.Duration())
	assert.Equal(t, Time(0), Visit{Start: 10, End: 10}.Duration())
}

func TestTimestep_EndAndNext(t *testing.T) {
	ts := Timestep{Start: 100, Duration: 86400}
	assert.Equal(t, Time(86500), ts.End())

	next := ts.Next()
	require.Equal(t, ts.End(), next.Start)
	assert.Equal(t, ts.Duration, next.Duration)
	assert.Equal(t, next.Start+next.Duration, next.End())
}

func TestTimestep_Contains(t *testing.T) {
	ts := Timestep{Start: 10, Duration: 5}
	assert.True(t, ts.Contains(10))
	assert.True(t, ts.Contains(14))
	assert.False(t, ts.Contains(15))
	assert.False(t, ts.Contains(9))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "infectious", Infectious.String())
	assert.Equal(t, "unknown", HealthState(42).String())
	assert.Equal(t, "environment", ExposureEnvironment.String())
	assert.Equal(t, "unknown", ExposureKind(9).String())
}
