package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stepwise/internal/config"
	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/synth"
)

// Scenario defines a simulation run and the checks applied to its result.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Population shape, see synth.Config.
	Agents          int `yaml:"agents"`
	Locations       int `yaml:"locations"`
	VisitsPerStep   int `yaml:"visits_per_step"`
	ReportsPerStep  int `yaml:"reports_per_step"`
	SeedEvery       int `yaml:"seed_every,omitempty"`
	InfectiousSteps int `yaml:"infectious_steps,omitempty"`

	// Steps timesteps of StepDuration each are run, starting at 0.
	Steps        int     `yaml:"steps"`
	StepDuration ir.Time `yaml:"step_duration"`

	// Strategy defaults to serial. RunOptions override it.
	Strategy   string `yaml:"strategy,omitempty"`
	Workers    int    `yaml:"workers,omitempty"`
	Nodes      int    `yaml:"nodes,omitempty"`
	ChunkSize  int    `yaml:"chunk_size,omitempty"`
	BufferSize int    `yaml:"buffer_size,omitempty"`

	// Assertions validate the final counters and summaries.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion validates counters, the clock, or a summary field.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Agent selects the receiving agent of outcome_count and report_count.
	Agent *int64 `yaml:"agent,omitempty"`

	// Location selects the location of visit_count.
	Location *int64 `yaml:"location,omitempty"`

	// From selects the sender of report_count.
	From *int64 `yaml:"from,omitempty"`

	// Start and End are checked against the last timestep.
	Start *int64 `yaml:"start,omitempty"`
	End   *int64 `yaml:"end,omitempty"`

	// Step and Field select a summary value (summary only).
	Step  int    `yaml:"step,omitempty"`
	Field string `yaml:"field,omitempty"`

	// Expect is the expected count or value.
	Expect int64 `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcomeCount = "outcome_count"
	AssertVisitCount   = "visit_count"
	AssertReportCount  = "report_count"
	AssertTimestep     = "timestep"
	AssertSummary      = "summary"
)

// Population returns the synth configuration of the scenario.
func (s *Scenario) Population() synth.Config {
	return synth.Config{
		Agents:          s.Agents,
		Locations:       s.Locations,
		VisitsPerStep:   s.VisitsPerStep,
		ReportsPerStep:  s.ReportsPerStep,
		SeedEvery:       s.SeedEvery,
		InfectiousSteps: s.InfectiousSteps,
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or does not match the schema.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decode catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks what the schema cannot express: relations between
// fields.
func validateScenario(s *Scenario) error {
	var errs []error
	if err := s.Population().Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Nodes > 1 && s.Strategy != config.StrategyDistributed {
		errs = append(errs, fmt.Errorf("nodes = %d requires strategy %q", s.Nodes, config.StrategyDistributed))
	}
	for i, a := range s.Assertions {
		switch {
		case a.Type == AssertTimestep && a.Start == nil && a.End == nil:
			errs = append(errs, fmt.Errorf("assertion %d: timestep needs start or end", i))
		case a.Type == AssertSummary && a.Step > s.Steps:
			errs = append(errs, fmt.Errorf("assertion %d: step %d beyond %d steps", i, a.Step, s.Steps))
		case a.Agent != nil && *a.Agent >= int64(s.Agents):
			errs = append(errs, fmt.Errorf("assertion %d: no agent %d", i, *a.Agent))
		case a.From != nil && *a.From >= int64(s.Agents):
			errs = append(errs, fmt.Errorf("assertion %d: no agent %d", i, *a.From))
		case a.Location != nil && *a.Location >= int64(s.Locations):
			errs = append(errs, fmt.Errorf("assertion %d: no location %d", i, *a.Location))
		}
	}
	return errors.Join(errs...)
}
