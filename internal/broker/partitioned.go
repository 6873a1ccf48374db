package broker

import (
	"sync"

	"github.com/roach88/stepwise/internal/invariant"
	"github.com/roach88/stepwise/internal/ir"
)

// PartitionedQueue is a Broker safe for concurrent producers. It keeps one
// fill and one drain sub-buffer per chunk of its Partitioner and routes each
// message to the chunk owning its destination.
//
// A single mutex covers both the per-message append in Send and the bulk
// swap in Consume. All producers serialize on it regardless of destination
// chunk.
type PartitionedQueue[M ir.Message[M]] struct {
	name  string
	parts *Partitioner

	mu       sync.Mutex
	fill     [][]M
	drain    [][]M
	draining bool
}

// NewPartitionedQueue creates a queue routing by parts. name appears in
// diagnostics.
func NewPartitionedQueue[M ir.Message[M]](name string, parts *Partitioner) *PartitionedQueue[M] {
	n := parts.NumChunks()
	return &PartitionedQueue[M]{
		name:  name,
		parts: parts,
		fill:  make([][]M, n),
		drain: make([][]M, n),
	}
}

// Partitioner returns the partitioner routing this queue.
func (q *PartitionedQueue[M]) Partitioner() *Partitioner { return q.parts }

// Send routes every message to its destination chunk's fill buffer.
func (q *PartitionedQueue[M]) Send(batch []M) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, m := range batch {
		c := q.parts.ChunkFor(m.Destination())
		q.fill[c] = append(q.fill[c], m)
	}
}

// Len returns the number of messages waiting in the fill buffers.
func (q *PartitionedQueue[M]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, f := range q.fill {
		n += len(f)
	}
	return n
}

// Consume swaps every fill sub-buffer with its drain sub-buffer in one step
// and returns a handle indexable by chunk.
func (q *PartitionedQueue[M]) Consume() *PartitionedDrain[M] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		invariant.Fail(invariant.ErrCodeQueueMisuse, q.name, 0, "consume while a drain handle is outstanding")
	}
	q.fill, q.drain = q.drain, q.fill
	q.draining = true
	return &PartitionedDrain[M]{q: q}
}

// PartitionedDrain is a scoped handle over the drain side of a PartitionedQueue.
//
// Distinct chunks may be read (and sorted in place) by distinct goroutines
// concurrently; a chunk must be touched by one goroutine only.
type PartitionedDrain[M ir.Message[M]] struct {
	q *PartitionedQueue[M]
}

// Chunk returns the drained messages destined to chunk i.
func (d *PartitionedDrain[M]) Chunk(i int) []M {
	return d.q.drain[i]
}

// NumChunks returns the number of chunks.
func (d *PartitionedDrain[M]) NumChunks() int {
	return len(d.q.drain)
}

// Len returns the total number of drained messages.
func (d *PartitionedDrain[M]) Len() int {
	n := 0
	for _, c := range d.q.drain {
		n += len(c)
	}
	return n
}

// Release clears every drained chunk and swaps back each chunk whose fill
// side is still empty.
func (d *PartitionedDrain[M]) Release() {
	q := d.q
	if q == nil {
		return
	}
	d.q = nil

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.drain {
		clear(q.drain[i])
		q.drain[i] = q.drain[i][:0]
		if len(q.fill[i]) == 0 {
			q.fill[i], q.drain[i] = q.drain[i], q.fill[i]
		}
	}
	q.draining = false
}
