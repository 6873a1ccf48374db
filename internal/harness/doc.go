// Package harness runs simulation scenarios and checks their results.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: reference_scenario
//	description: "1024 agents, 7 visits and 3 reports per step"
//	agents: 1024
//	locations: 1024
//	visits_per_step: 7
//	reports_per_step: 3
//	seed_every: 97         # optional, agents starting infectious
//	infectious_steps: 3    # optional
//	steps: 5
//	step_duration: 70
//	strategy: parallel     # optional: serial | parallel | distributed
//	workers: 4             # optional
//	nodes: 3               # optional, distributed only
//	chunk_size: 128        # optional
//	buffer_size: 256       # optional
//	assertions:
//	  - type: outcome_count
//	    expect: 28
//	  - type: report_count
//	    agent: 5
//	    from: 4
//	    expect: 4
//
// Files are decoded strictly (unknown fields are errors) and then checked
// against an embedded CUE schema.
//
// # Assertion Types
//
//   - outcome_count: outcomes received by agent (every agent if omitted)
//   - visit_count: visits received by location (every location if omitted)
//   - report_count: reports agent received from from (every observed pair
//     if either is omitted)
//   - timestep: start and/or end of the simulation clock after the run;
//     start is the time reached, end is start plus the step duration
//   - summary: one field of the summary of step
//
// # Determinism
//
// The synthetic population is deterministic, and observations do not depend
// on the strategy, worker count, or node count. RunWithGolden compares the
// per-timestep summary trace with testdata/golden/<name>.golden, so one golden
// file holds for every strategy.
package harness
