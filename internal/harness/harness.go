package harness

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/stepwise/internal/config"
	"github.com/roach88/stepwise/internal/engine"
	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
	"github.com/roach88/stepwise/internal/store"
	"github.com/roach88/stepwise/internal/synth"
	"github.com/roach88/stepwise/internal/transport"
)

// RunOptions override the scenario's execution settings and attach
// persistence. The zero value runs the scenario as written.
type RunOptions struct {
	// Strategy, Workers and Nodes override the scenario when non-zero.
	Strategy string
	Workers  int
	Nodes    int

	// Store receives the run record and every summary when non-nil.
	Store *store.Store

	// RunIDs generates the run id. Default: engine.UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	Logger *slog.Logger
}

// Result is the outcome of a scenario execution.
type Result struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Workers  int    `json:"workers"`
	Nodes    int    `json:"nodes"`

	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Errors contains one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	// Records holds the summary of every timestep, in order.
	Records []observer.Record `json:"records"`

	// Chain is the final chain digest.
	Chain string `json:"chain"`

	Counts observer.Snapshot `json:"-"`

	// Final is the simulation clock after the last step.
	Final ir.Timestep `json:"final"`
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario and evaluates its assertions. A returned error
// means the run itself failed; failed assertions are reported in the Result.
func Run(ctx context.Context, s *Scenario, opts RunOptions) (*Result, error) {
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}

	strategy := firstNonZero(opts.Strategy, s.Strategy, config.StrategySerial)
	workers := firstNonZero(opts.Workers, s.Workers)
	nodes := firstNonZero(opts.Nodes, s.Nodes, 1)
	if strategy != config.StrategyDistributed {
		nodes = 1
	}

	pop, err := synth.New(s.Population())
	if err != nil {
		return nil, fmt.Errorf("build population: %w", err)
	}

	runID := runIDs.Generate()
	logger = logger.With("run_id", runID, "scenario", s.Name)

	var sink observer.SummarySink
	if opts.Store != nil {
		err := opts.Store.WriteRun(ctx, store.Run{
			ID:            runID,
			Scenario:      s.Name,
			Strategy:      strategy,
			Workers:       workers,
			Nodes:         nodes,
			StepDuration:  s.StepDuration,
			EngineVersion: ir.EngineVersion,
			DigestVersion: ir.DigestVersion,
		})
		if err != nil {
			return nil, err
		}
		sink = opts.Store
	}

	counts := observer.NewCounts()
	summaries := observer.NewSummaries(runID, sink, logger)
	engineOpts := []engine.Option{
		engine.WithWorkers(workers),
		engine.WithChunkSize(s.ChunkSize),
		engine.WithBufferSize(s.BufferSize),
		engine.WithLogger(logger),
	}

	var final ir.Timestep
	switch strategy {
	case config.StrategySerial, config.StrategyParallel:
		final, err = runLocal(ctx, strategy, pop, s, engineOpts, counts, summaries.Factory())
	case config.StrategyDistributed:
		final, err = runCluster(ctx, pop, s, nodes, logger, engineOpts, counts, summaries.Factory())
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", s.Name, err)
	}

	result := &Result{
		RunID:    runID,
		Strategy: strategy,
		Workers:  workers,
		Nodes:    nodes,
		Pass:     true,
		Records:  summaries.Records(),
		Chain:    summaries.Chain(),
		Counts:   counts.Snapshot(),
		Final:    final,
	}

	if opts.Store != nil {
		if err := opts.Store.CompleteRun(ctx, runID, int64(len(result.Records)), result.Chain); err != nil {
			return nil, err
		}
	}

	for i, a := range s.Assertions {
		if err := evaluate(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertion %d: %v", i, err))
		}
	}

	logger.Info("scenario complete",
		"strategy", strategy,
		"steps", len(result.Records),
		"chain", result.Chain,
		"pass", result.Pass,
	)
	return result, nil
}

// runLocal steps a Serial or Parallel simulation over the whole population.
func runLocal(ctx context.Context, strategy string, pop *synth.Population, s *Scenario, opts []engine.Option, factories ...observer.Factory) (ir.Timestep, error) {
	agents, locations := partition(pop, transport.Modulo(1), 0)

	var sim engine.Simulation
	if strategy == config.StrategySerial {
		sim = engine.NewSerial(agents, locations, opts...)
	} else {
		p := engine.NewParallel(agents, locations, opts...)
		defer p.Close()
		sim = p
	}
	for _, f := range factories {
		sim.AddObserverFactory(f)
	}
	if err := sim.Step(ctx, s.Steps, s.StepDuration); err != nil {
		return ir.Timestep{}, err
	}
	return sim.Timestep(), nil
}

// runCluster steps one Distributed simulation per node of a loopback
// cluster. Every factory is gathered so it aggregates once per timestep over
// all nodes.
func runCluster(ctx context.Context, pop *synth.Population, s *Scenario, nodes int, logger *slog.Logger, opts []engine.Option, factories ...observer.Factory) (ir.Timestep, error) {
	placement := transport.Modulo(nodes)
	cluster := transport.NewCluster(nodes, placement, transport.WithLogger(logger))
	defer cluster.Close()

	gathered := make([]observer.Factory, len(factories))
	for i, f := range factories {
		gathered[i] = observer.Gather(f, nodes)
	}

	sims := make([]*engine.Distributed, nodes)
	for n := range sims {
		agents, locations := partition(pop, placement, n)
		sims[n] = engine.NewDistributed(agents, locations, cluster.Node(n), opts...)
		defer sims[n].Close()
		for _, f := range gathered {
			sims[n].AddObserverFactory(f)
		}
	}

	// Nodes advance one timestep at a time in lockstep. A node that stopped
	// alone would leave its peers blocked in a barrier.
	step := context.WithoutCancel(ctx)
	for range s.Steps {
		if err := ctx.Err(); err != nil {
			return sims[0].Timestep(), err
		}
		g := new(errgroup.Group)
		for _, sim := range sims {
			g.Go(func() error { return sim.Step(step, 1, s.StepDuration) })
		}
		if err := g.Wait(); err != nil {
			return ir.Timestep{}, err
		}
	}
	return sims[0].Timestep(), nil
}

// partition returns the entities placement puts on node.
func partition(pop *synth.Population, placement transport.Placement, node int) ([]engine.Agent, []engine.Location) {
	var agents []engine.Agent
	var locations []engine.Location
	for _, a := range pop.Agents {
		if placement.AgentNode(a.ID()) == node {
			agents = append(agents, a)
		}
	}
	for _, l := range pop.Locations {
		if placement.LocationNode(l.ID()) == node {
			locations = append(locations, l)
		}
	}
	return agents, locations
}

func firstNonZero[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
