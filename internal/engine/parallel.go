package engine

import (
	"context"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/ir"
	"github.com/roach88/stepwise/internal/observer"
	"github.com/roach88/stepwise/internal/pool"
)

// outbox is a worker-owned broker that buffers until flushed.
type outbox[M any] interface {
	broker.Broker[M]
	broker.Flusher
}

// pooled implements the chunked worker-pool protocol shared by Parallel and
// Distributed. With a nil remote every message stays local.
type pooled struct {
	base

	pool      *pool.Pool
	agentPart *broker.Partitioner
	locPart   *broker.Partitioner

	visits   *broker.PartitionedQueue[ir.Visit]
	outcomes *broker.PartitionedQueue[ir.InfectionOutcome]
	reports  *broker.PartitionedQueue[ir.ContactReport]

	remote DistributedManager

	// One shard per worker slot, created on first use in a timestep.
	shards []*observer.Shard
}

func newPooled(strategy string, agents []Agent, locations []Location, remote DistributedManager, opts []Option) *pooled {
	cfg := newConfig(opts)
	p := &pooled{
		base:   newBase(strategy, agents, locations, cfg),
		pool:   pool.New(cfg.workers),
		remote: remote,
	}
	p.agentPart = broker.NewPartitioner("agent", agentIDs(p.agents), cfg.chunkSize)
	p.locPart = broker.NewPartitioner("location", locationIDs(p.locations), cfg.chunkSize)
	p.visits = broker.NewPartitionedQueue[ir.Visit]("visit", p.locPart)
	p.outcomes = broker.NewPartitionedQueue[ir.InfectionOutcome]("outcome", p.agentPart)
	p.reports = broker.NewPartitionedQueue[ir.ContactReport]("report", p.agentPart)
	p.shards = make([]*observer.Shard, p.pool.Size())
	p.stats = p.poolStats

	p.logger.Debug("strategy ready",
		"workers", p.pool.Size(),
		"chunk", cfg.chunkSize,
		"agent_chunks", p.agentPart.NumChunks(),
		"location_chunks", p.locPart.NumChunks(),
	)
	return p
}

// Step runs n timesteps of duration d.
func (p *pooled) Step(ctx context.Context, n int, d ir.Time) error {
	return p.run(ctx, n, d, p.step)
}

// Workers returns the worker pool size.
func (p *pooled) Workers() int { return p.pool.Size() }

// poolStats reports the cumulative worker pool counters.
func (p *pooled) poolStats() []any {
	m := p.pool.Metrics()
	return []any{
		"tasks", m.TasksRun.Load(),
		"executions", m.Executions.Load(),
		"panics", m.Panics.Load(),
	}
}

// Close stops the worker pool. The strategy must not be stepped afterwards.
func (p *pooled) Close() { p.pool.Close() }

func (p *pooled) step(ts ir.Timestep) {
	clear(p.shards)
	p.agentPhase(ts)
	p.locationPhase(ts)
}

func (p *pooled) shard(ts ir.Timestep, worker int) *observer.Shard {
	if p.shards[worker] == nil {
		p.shards[worker] = p.observers.NewShard(ts)
	}
	return p.shards[worker]
}

func newOutbox[M any](local broker.Broker[M], remote broker.RemoteMessenger[M], limit int) outbox[M] {
	if remote == nil {
		return broker.NewBuffered(local, limit)
	}
	return broker.NewSplit(local, remote, limit)
}

func (p *pooled) agentPhase(ts ir.Timestep) {
	var remoteVisits broker.RemoteMessenger[ir.Visit]
	var remoteReports broker.RemoteMessenger[ir.ContactReport]
	if p.remote != nil {
		remoteVisits, remoteReports = p.remote.Visits(), p.remote.Reports()
		remoteVisits.SetReceiveSink(p.visits)
		remoteReports.SetReceiveSink(p.reports)
	}

	outcomes := p.outcomes.Consume()
	defer outcomes.Release()
	reports := p.reports.Consume()
	defer reports.Release()

	p.logger.Debug("agent phase",
		"timestep", ts.Start,
		"outcomes", outcomes.Len(),
		"reports", reports.Len(),
	)

	chunks := p.agentPart.Chunks()
	cursor := pool.NewCursor(len(chunks))
	exec := p.pool.NewExecution()
	for w := 0; w < p.pool.Size(); w++ {
		exec.Add(func() {
			shard := p.shard(ts, w)
			visitOut := newOutbox(p.visits, remoteVisits, p.cfg.bufferSize)
			reportOut := newOutbox(p.reports, remoteReports, p.cfg.bufferSize)
			for {
				i, ok := cursor.Next()
				if !ok {
					break
				}
				c := chunks[i]
				runAgents(ts, p.agents[c.Lo:c.Hi], outcomes.Chunk(i), reports.Chunk(i),
					shard, visitOut, reportOut)
			}
			visitOut.Flush()
			reportOut.Flush()
		})
	}
	exec.Wait()

	if p.remote != nil {
		remoteVisits.FlushAndAwait()
		remoteReports.FlushAndAwait()
	}
}

func (p *pooled) locationPhase(ts ir.Timestep) {
	var remoteOutcomes broker.RemoteMessenger[ir.InfectionOutcome]
	if p.remote != nil {
		remoteOutcomes = p.remote.Outcomes()
		remoteOutcomes.SetReceiveSink(p.outcomes)
	}

	visits := p.visits.Consume()
	defer visits.Release()

	p.logger.Debug("location phase",
		"timestep", ts.Start,
		"visits", visits.Len(),
	)

	chunks := p.locPart.Chunks()
	cursor := pool.NewCursor(len(chunks))
	exec := p.pool.NewExecution()
	for w := 0; w < p.pool.Size(); w++ {
		exec.Add(func() {
			shard := p.shard(ts, w)
			outcomeOut := newOutbox(p.outcomes, remoteOutcomes, p.cfg.bufferSize)
			for {
				i, ok := cursor.Next()
				if !ok {
					break
				}
				c := chunks[i]
				runLocations(ts, p.locations[c.Lo:c.Hi], visits.Chunk(i), shard, outcomeOut)
			}
			outcomeOut.Flush()
		})
	}
	exec.Wait()

	if p.remote != nil {
		remoteOutcomes.FlushAndAwait()
	}
}

// Parallel runs each phase on a fixed worker pool. Workers pull chunks of
// entities from a shared cursor and write through their own buffers into
// queues partitioned by destination chunk.
type Parallel struct {
	*pooled
}

var _ Simulation = (*Parallel)(nil)

// NewParallel creates a parallel strategy. Call Close when done to stop the
// worker pool.
func NewParallel(agents []Agent, locations []Location, opts ...Option) *Parallel {
	return &Parallel{newPooled("parallel", agents, locations, nil, opts)}
}

// Distributed is Parallel on one node of a cluster. agents and locations are
// the entities this node owns; messages for entities owned by other nodes
// leave through the DistributedManager, and each phase ends with a barrier
// across the cluster. Every node must Step the same n and d concurrently.
type Distributed struct {
	*pooled
}

var _ Simulation = (*Distributed)(nil)

// NewDistributed creates the strategy for one node. Call Close when done.
func NewDistributed(agents []Agent, locations []Location, remote DistributedManager, opts ...Option) *Distributed {
	return &Distributed{newPooled("distributed", agents, locations, remote, opts)}
}
