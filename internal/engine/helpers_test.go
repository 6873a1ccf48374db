package engine

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
	"github.com/roach88/stepwise/internal/synth"
	"github.com/roach88/stepwise/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scenarioConfig is the reference scenario: 1024 agents visiting 7 locations
// and reporting to 3 peers every step.
var scenarioConfig = synth.Config{
	Agents:         1024,
	Locations:      1024,
	VisitsPerStep:  7,
	ReportsPerStep: 3,
	SeedEvery:      97,
}

// smallConfig is a population for tests that only need a few entities.
var smallConfig = synth.Config{
	Agents:         16,
	Locations:      8,
	VisitsPerStep:  2,
	ReportsPerStep: 1,
}

func population(t *testing.T, cfg synth.Config) ([]Agent, []Location) {
	t.Helper()
	p, err := synth.New(cfg)
	require.NoError(t, err)
	return entities(p, transport.Modulo(1), 0)
}

// entities returns the agents and locations placement puts on node.
func entities(p *synth.Population, placement transport.Placement, node int) ([]Agent, []Location) {
	var agents []Agent
	var locations []Location
	for _, a := range p.Agents {
		if placement.AgentNode(a.ID()) == node {
			agents = append(agents, a)
		}
	}
	for _, l := range p.Locations {
		if placement.LocationNode(l.ID()) == node {
			locations = append(locations, l)
		}
	}
	return agents, locations
}

// runDistributed steps a loopback cluster of n nodes over a fresh population.
// Each factory is gathered across the nodes so it aggregates once per step.
func runDistributed(t *testing.T, cfg synth.Config, nodes, steps int, d ir.Time, factories ...observer.Factory) {
	t.Helper()
	p, err := synth.New(cfg)
	require.NoError(t, err)

	placement := transport.Modulo(nodes)
	cluster := transport.NewCluster(nodes, placement, transport.WithLogger(discardLogger()))
	defer cluster.Close()

	gathered := make([]observer.Factory, len(factories))
	for i, f := range factories {
		gathered[i] = observer.Gather(f, nodes)
	}

	sims := make([]*Distributed, nodes)
	for n := range sims {
		agents, locations := entities(p, placement, n)
		sims[n] = NewDistributed(agents, locations, cluster.Node(n),
			WithWorkers(2), WithChunkSize(64), WithLogger(discardLogger()))
		for _, f := range gathered {
			sims[n].AddObserverFactory(f)
		}
	}
	defer func() {
		for _, s := range sims {
			s.Close()
		}
	}()

	var wg sync.WaitGroup
	errs := make([]error, nodes)
	for n, s := range sims {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[n] = s.Step(t.Context(), steps, d)
		}()
	}
	wg.Wait()
	for n, err := range errs {
		require.NoError(t, err, "node %d", n)
	}
	for n := range sims {
		require.Equal(t, int64(0), cluster.Node(n).Pending(), "node %d", n)
	}
}
