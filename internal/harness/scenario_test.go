package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "two agents, one location"
agents: 2
locations: 1
visits_per_step: 1
reports_per_step: 1
steps: 3
step_duration: 10
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, 2, s.Agents)
	assert.Equal(t, 1, s.Locations)
	assert.Equal(t, 3, s.Steps)
	assert.Equal(t, int64(10), s.StepDuration)
	assert.Empty(t, s.Strategy)
	assert.Empty(t, s.Assertions)
}

func TestParseScenario_Assertions(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario + `
assertions:
  - type: report_count
    agent: 1
    from: 0
    expect: 2
  - type: timestep
    end: 30
`))
	require.NoError(t, err)
	require.Len(t, s.Assertions, 2)

	rc := s.Assertions[0]
	assert.Equal(t, AssertReportCount, rc.Type)
	require.NotNil(t, rc.Agent)
	require.NotNil(t, rc.From)
	assert.Equal(t, int64(1), *rc.Agent)
	assert.Equal(t, int64(0), *rc.From)
	assert.Equal(t, int64(2), rc.Expect)

	ts := s.Assertions[1]
	assert.Nil(t, ts.Start)
	require.NotNil(t, ts.End)
	assert.Equal(t, int64(30), *ts.End)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative agents", `
name: bad
description: "x"
agents: -1
locations: 1
visits_per_step: 0
reports_per_step: 0
steps: 1
step_duration: 1
`},
		{"zero duration", `
name: bad
description: "x"
agents: 2
locations: 1
visits_per_step: 0
reports_per_step: 0
steps: 1
step_duration: 0
`},
		{"unknown strategy", minimalScenario + "strategy: gpu\n"},
		{"bad name", `
name: Not A Name
description: "x"
agents: 2
locations: 1
visits_per_step: 0
reports_per_step: 0
steps: 1
step_duration: 1
`},
		{"missing steps", `
name: bad
description: "x"
agents: 2
locations: 1
visits_per_step: 0
reports_per_step: 0
step_duration: 1
`},
		{"unknown assertion", minimalScenario + `
assertions:
  - type: trace_order
    expect: 1
`},
		{"assertion field of another type", minimalScenario + `
assertions:
  - type: visit_count
    agent: 1
    expect: 1
`},
		{"summary field", minimalScenario + `
assertions:
  - type: summary
    step: 1
    field: states
    expect: 1
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			var schemaErr *SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestParseScenario_RelationalChecks(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"too many visits", strings.Replace(minimalScenario, "visits_per_step: 1", "visits_per_step: 2", 1), "visits per step"},
		{"nodes without distributed", minimalScenario + "nodes: 2\n", "requires strategy"},
		{"timestep without bounds", minimalScenario + "assertions:\n  - type: timestep\n", "needs start or end"},
		{"summary beyond steps", minimalScenario + "assertions:\n  - type: summary\n    step: 9\n    field: visits\n    expect: 0\n", "beyond 3 steps"},
		{"unknown agent", minimalScenario + "assertions:\n  - type: outcome_count\n    agent: 2\n    expect: 0\n", "no agent 2"},
		{"unknown location", minimalScenario + "assertions:\n  - type: visit_count\n    location: 1\n    expect: 0\n", "no location 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Assertions)
		})
	}
}

func TestPopulation(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario + "seed_every: 2\ninfectious_steps: 4\n"))
	require.NoError(t, err)

	cfg := s.Population()
	assert.Equal(t, 2, cfg.Agents)
	assert.Equal(t, 1, cfg.VisitsPerStep)
	assert.Equal(t, 2, cfg.SeedEvery)
	assert.Equal(t, 4, cfg.InfectiousSteps)
}
