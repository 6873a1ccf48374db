// Package observer implements per-timestep observation of agents and locations.
//
// Factories are registered with a Manager for the lifetime of a run. At every
// timestep each worker asks the Manager for a Shard; creating the shard makes
// one fresh observer per registered factory, so the observation path never
// shares state between goroutines. After the timestep the Manager hands every
// factory all the observers it produced (Aggregate) and forgets them.
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/stepwise/internal/ir"
)

// AgentState is the read-only view of an agent offered to observers.
type AgentState interface {
	ID() ir.AgentID
	State() ir.HealthState
	LatestTest() (ir.TestResult, bool)
}

// LocationState is the read-only view of a location offered to observers.
type LocationState interface {
	ID() ir.LocationID
}

// Observer is any value produced by a Factory. It takes part in agent and/or
// location observation by implementing AgentObserver and/or LocationObserver.
type Observer any

// AgentObserver sees every agent once per timestep, with the outcomes and
// reports delivered to it in that timestep's agent phase.
type AgentObserver interface {
	ObserveAgent(a AgentState, outcomes []ir.InfectionOutcome, reports []ir.ContactReport)
}

// LocationObserver sees every location once per timestep, with the visits
// delivered to it in that timestep's location phase.
type LocationObserver interface {
	ObserveLocation(l LocationState, visits []ir.Visit)
}

// Factory creates observers and merges them at the end of each timestep.
//
// MakeObserver is called once per shard per timestep, possibly from several
// goroutines at once (the Manager serializes the calls). Aggregate receives
// every observer made for ts and must flush them; they are discarded after.
type Factory interface {
	MakeObserver(ts ir.Timestep) Observer
	Aggregate(ctx context.Context, ts ir.Timestep, observers []Observer) error
}

// NewFactory adapts typed constructor and aggregation functions to Factory.
func NewFactory[O Observer](
	newObserver func(ts ir.Timestep) O,
	aggregate func(ctx context.Context, ts ir.Timestep, observers []O) error,
) Factory {
	return &typedFactory[O]{newObserver: newObserver, aggregate: aggregate}
}

type typedFactory[O Observer] struct {
	newObserver func(ir.Timestep) O
	aggregate   func(context.Context, ir.Timestep, []O) error
}

func (f *typedFactory[O]) MakeObserver(ts ir.Timestep) Observer {
	return f.newObserver(ts)
}

func (f *typedFactory[O]) Aggregate(ctx context.Context, ts ir.Timestep, observers []Observer) error {
	typed := make([]O, len(observers))
	for i, o := range observers {
		typed[i] = o.(O)
	}
	return f.aggregate(ctx, ts, typed)
}

// Shard routes observe calls of one worker to the observers made for it.
// Not safe for concurrent use.
type Shard struct {
	agents    []AgentObserver
	locations []LocationObserver
}

// ObserveAgent dispatches to every agent observer of the shard.
func (s *Shard) ObserveAgent(a AgentState, outcomes []ir.InfectionOutcome, reports []ir.ContactReport) {
	for _, o := range s.agents {
		o.ObserveAgent(a, outcomes, reports)
	}
}

// ObserveLocation dispatches to every location observer of the shard.
func (s *Shard) ObserveLocation(l LocationState, visits []ir.Visit) {
	for _, o := range s.locations {
		o.ObserveLocation(l, visits)
	}
}

// Manager owns the registered factories and the observers of the timestep in
// progress. Safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	factories []Factory

	// Per-timestep state, reset by Aggregate.
	active    bool
	ts        ir.Timestep
	snapshot  []Factory
	observers [][]Observer
}

// NewManager creates a manager with no factories.
func NewManager() *Manager {
	return &Manager{}
}

// Add registers f. Registering the same factory twice is a no-op.
// Takes effect from the next timestep.
func (m *Manager) Add(f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.factories {
		if g == f {
			return
		}
	}
	m.factories = append(m.factories, f)
}

// Remove unregisters f. Takes effect from the next timestep.
func (m *Manager) Remove(f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.factories {
		if g == f {
			m.factories = append(m.factories[:i:i], m.factories[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered factories.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.factories)
}

// NewShard makes one observer per registered factory for ts and returns a
// shard dispatching to them, most recently registered first.
func (m *Manager) NewShard(ts ir.Timestep) *Shard {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		m.active = true
		m.ts = ts
		m.snapshot = append([]Factory(nil), m.factories...)
		m.observers = make([][]Observer, len(m.snapshot))
	} else if m.ts != ts {
		panic(fmt.Sprintf("observer: shard requested for %+v while %+v is not aggregated", ts, m.ts))
	}

	s := &Shard{}
	for i := len(m.snapshot) - 1; i >= 0; i-- {
		o := m.snapshot[i].MakeObserver(ts)
		m.observers[i] = append(m.observers[i], o)
		if ao, ok := o.(AgentObserver); ok {
			s.agents = append(s.agents, ao)
		}
		if lo, ok := o.(LocationObserver); ok {
			s.locations = append(s.locations, lo)
		}
	}
	return s
}

// Aggregate hands every factory the observers made for ts, then discards
// them. All factories are aggregated even if some fail; the errors are joined.
func (m *Manager) Aggregate(ctx context.Context, ts ir.Timestep) error {
	m.mu.Lock()
	snapshot, observers := m.snapshot, m.observers
	m.active = false
	m.snapshot = nil
	m.observers = nil
	m.mu.Unlock()

	var errs []error
	for i, f := range snapshot {
		if err := f.Aggregate(ctx, ts, observers[i]); err != nil {
			errs = append(errs, fmt.Errorf("aggregate factory %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
