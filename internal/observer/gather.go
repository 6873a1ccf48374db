package observer

import (
	"context"
	"sync"

	"github.com/roach88/stepwise/internal/ir"
)

// Gather joins the managers of several cooperating nodes into one
// aggregation. Register the returned factory with each of parties managers:
// every manager's Aggregate hands over its observers, and the last of the
// parties to arrive for a timestep aggregates all of them with f.
//
// The earlier arrivals return nil immediately, so only the last caller sees
// an error from f.
func Gather(f Factory, parties int) Factory {
	return &gathered{inner: f, parties: parties, pending: make(map[ir.Timestep]*gathering)}
}

type gathering struct {
	arrived   int
	observers []Observer
}

type gathered struct {
	inner   Factory
	parties int

	mu      sync.Mutex
	pending map[ir.Timestep]*gathering
}

func (g *gathered) MakeObserver(ts ir.Timestep) Observer {
	return g.inner.MakeObserver(ts)
}

func (g *gathered) Aggregate(ctx context.Context, ts ir.Timestep, observers []Observer) error {
	g.mu.Lock()
	p, ok := g.pending[ts]
	if !ok {
		p = &gathering{}
		g.pending[ts] = p
	}
	p.arrived++
	p.observers = append(p.observers, observers...)
	if p.arrived < g.parties {
		g.mu.Unlock()
		return nil
	}
	delete(g.pending, ts)
	g.mu.Unlock()

	return g.inner.Aggregate(ctx, ts, p.observers)
}
