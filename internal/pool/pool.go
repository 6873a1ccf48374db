// Package pool provides the fixed-size worker pool the Parallel and
// Distributed strategies run their phases on.
//
// A Pool owns its goroutines for the lifetime of a strategy instance and is
// reused across timesteps. Work is organized in one-shot Executions: callables
// are added, then Wait blocks until every one of them has finished. Work
// division is pull-based through a Cursor, not decided up front.
package pool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Metrics tracks statistics for the pool.
type Metrics struct {
	TasksRun   atomic.Uint64
	Executions atomic.Uint64
	Panics     atomic.Uint64
}

// String returns a formatted representation of the metrics.
func (m *Metrics) String() string {
	return fmt.Sprintf("tasks=%d executions=%d panics=%d",
		m.TasksRun.Load(), m.Executions.Load(), m.Panics.Load())
}

// Pool is a fixed set of goroutines consuming tasks from a channel.
type Pool struct {
	size    int
	tasks   chan func()
	wg      sync.WaitGroup
	closed  atomic.Bool
	metrics Metrics
}

// New starts a pool of size goroutines. A size <= 0 selects GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		size:  size,
		tasks: make(chan func()),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
		p.metrics.TasksRun.Add(1)
	}
}

// Size returns the number of worker goroutines.
func (p *Pool) Size() int { return p.size }

// Metrics returns the pool's live counters.
func (p *Pool) Metrics() *Metrics { return &p.metrics }

// Close stops the workers after the tasks already handed out finish.
// Adding to an Execution of a closed pool panics.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// NewExecution starts a one-shot unit of work on the pool.
func (p *Pool) NewExecution() *Execution {
	p.metrics.Executions.Add(1)
	e := &Execution{pool: p}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Execution tracks a set of callables run on a Pool. It is not reusable:
// create one per phase.
type Execution struct {
	pool *Pool

	mu       sync.Mutex
	cond     *sync.Cond
	started  int
	finished int
	failure  any
}

// Add hands fn to the next free worker, blocking while all are busy.
func (e *Execution) Add(fn func()) {
	if e.pool.closed.Load() {
		panic("pool: add to closed pool")
	}

	e.mu.Lock()
	e.started++
	e.mu.Unlock()

	e.pool.tasks <- func() {
		defer e.done()
		fn()
	}
}

// done records completion. A panic in fn is captured so that Wait can
// re-raise it on the goroutine driving the phase.
func (e *Execution) done() {
	r := recover()

	e.mu.Lock()
	defer e.mu.Unlock()
	if r != nil {
		e.pool.metrics.Panics.Add(1)
		if e.failure == nil {
			e.failure = r
		}
	}
	e.finished++
	e.cond.Broadcast()
}

// Wait blocks until every added callable has finished. If any of them
// panicked, Wait panics with the first recovered value.
func (e *Execution) Wait() {
	e.mu.Lock()
	for e.finished < e.started {
		e.cond.Wait()
	}
	failure := e.failure
	e.mu.Unlock()

	if failure != nil {
		panic(failure)
	}
}

// Cursor hands out indices 0..n-1 to competing workers, one at a time.
type Cursor struct {
	mu   sync.Mutex
	next int
	n    int
}

// NewCursor creates a cursor over n items.
func NewCursor(n int) *Cursor {
	return &Cursor{n: n}
}

// Next returns the next unclaimed index, or false when all are claimed.
func (c *Cursor) Next() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= c.n {
		return 0, false
	}
	i := c.next
	c.next++
	return i, true
}
