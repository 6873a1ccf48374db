package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/stepwise/internal/invariant"
	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
)

// ErrNonPositiveStep is returned by Step for a step duration <= 0.
var ErrNonPositiveStep = errors.New("step duration must be positive")

// Simulation is the surface shared by all strategies.
//
// Step must not be called concurrently with itself. Observer factories added
// or removed during a timestep take effect from the next one.
type Simulation interface {
	// Step runs n timesteps of duration d. ctx is checked between
	// timesteps only; a started timestep always completes.
	Step(ctx context.Context, n int, d ir.Time) error

	AddObserverFactory(f observer.Factory)
	RemoveObserverFactory(f observer.Factory)

	// Timestep returns the simulation clock: Start is where the next step
	// begins and Duration is the last step duration, so every completed
	// Step(1, d) advances Start by exactly d. Before the first Step it is the
	// empty window at the start time.
	Timestep() ir.Timestep
}

// base holds what every strategy shares: the sorted entities, the observer
// manager, and the clock.
type base struct {
	strategy  string
	cfg       config
	logger    *slog.Logger
	agents    []Agent
	locations []Location
	observers *observer.Manager
	current   ir.Timestep

	// stats adds strategy-specific attributes to the per-timestep log.
	stats func() []any
}

func newBase(strategy string, agents []Agent, locations []Location, cfg config) base {
	agents = slices.Clone(agents)
	locations = slices.Clone(locations)
	slices.SortFunc(agents, func(a, b Agent) int { return cmp.Compare(int64(a.ID()), int64(b.ID())) })
	slices.SortFunc(locations, func(a, b Location) int { return cmp.Compare(int64(a.ID()), int64(b.ID())) })
	checkUnique("agent", agents, func(a Agent) int64 { return int64(a.ID()) })
	checkUnique("location", locations, func(l Location) int64 { return int64(l.ID()) })

	return base{
		strategy:  strategy,
		cfg:       cfg,
		logger:    cfg.logger.With("strategy", strategy),
		agents:    agents,
		locations: locations,
		observers: observer.NewManager(),
		current:   ir.Timestep{Start: cfg.start},
	}
}

func checkUnique[E any](kind string, entities []E, id func(E) int64) {
	for i := 1; i < len(entities); i++ {
		if id(entities[i]) == id(entities[i-1]) {
			invariant.Fail(invariant.ErrCodeUnsortedEntities, kind, id(entities[i]), "duplicate entity id")
		}
	}
}

func agentIDs(agents []Agent) []int64 {
	ids := make([]int64, len(agents))
	for i, a := range agents {
		ids[i] = int64(a.ID())
	}
	return ids
}

func locationIDs(locations []Location) []int64 {
	ids := make([]int64, len(locations))
	for i, l := range locations {
		ids[i] = int64(l.ID())
	}
	return ids
}

// AddObserverFactory registers f.
func (b *base) AddObserverFactory(f observer.Factory) { b.observers.Add(f) }

// RemoveObserverFactory unregisters f.
func (b *base) RemoveObserverFactory(f observer.Factory) { b.observers.Remove(f) }

// Timestep returns the simulation clock.
func (b *base) Timestep() ir.Timestep { return b.current }

// run drives n timesteps through step, aggregating observers after each.
// The clock advances even when aggregation fails, since the timestep's
// messages were already exchanged.
func (b *base) run(ctx context.Context, n int, d ir.Time, step func(ir.Timestep)) error {
	if d <= 0 {
		return fmt.Errorf("%s: %w (got %d)", b.strategy, ErrNonPositiveStep, d)
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: stopped before step %d of %d: %w", b.strategy, i+1, n, err)
		}

		ts := ir.Timestep{Start: b.current.Start, Duration: d}
		began := time.Now()
		b.runStep(ts, step)
		err := b.observers.Aggregate(ctx, ts)
		b.current = ts.Next()
		if err != nil {
			return fmt.Errorf("%s: timestep %d: %w", b.strategy, ts.Start, err)
		}

		attrs := []any{
			"timestep", ts.Start,
			"duration", ts.Duration,
			"elapsed", time.Since(began),
		}
		if b.stats != nil {
			attrs = append(attrs, b.stats()...)
		}
		b.logger.Info("timestep complete", attrs...)
	}
	return nil
}

// runStep runs one timestep. An invariant violation is logged again with the
// strategy's attributes before it continues to unwind.
func (b *base) runStep(ts ir.Timestep, step func(ir.Timestep)) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if err, ok := r.(*invariant.Error); ok {
			b.logger.Error("timestep aborted",
				"timestep", ts.Start,
				"code", string(err.Code),
				"kind", err.Kind,
				"id", err.ID,
				"message", err.Message,
			)
		}
		panic(r)
	}()
	step(ts)
}
