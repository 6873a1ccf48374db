package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/invariant"
	"github.com/roach88/stepwise/internal/ir"
)

// bus holds the inboxes and barrier shared by the messengers of one message
// type across the cluster.
type bus[M ir.Message[M]] struct {
	kind    string
	inboxes []*inbox[M]
	arrive  *barrier
	leave   *barrier
}

type inbox[M any] struct {
	mu      sync.Mutex
	batches [][]M
	closed  bool
}

func newBus[M ir.Message[M]](kind string, n int) *bus[M] {
	b := &bus[M]{
		kind:    kind,
		inboxes: make([]*inbox[M], n),
		arrive:  newBarrier(n),
		leave:   newBarrier(n),
	}
	for i := range b.inboxes {
		b.inboxes[i] = &inbox[M]{}
	}
	return b
}

func (b *bus[M]) deliver(node int, batch []M) error {
	in := b.inboxes[node]
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return fmt.Errorf("deliver %d %ss to node %d: %w", len(batch), b.kind, node, ErrClosed)
	}
	in.batches = append(in.batches, batch)
	return nil
}

func (b *bus[M]) take(node int) [][]M {
	in := b.inboxes[node]
	in.mu.Lock()
	defer in.mu.Unlock()
	batches := in.batches
	in.batches = nil
	return batches
}

func (b *bus[M]) close() {
	for _, in := range b.inboxes {
		in.mu.Lock()
		in.closed = true
		in.mu.Unlock()
	}
}

// Messenger is the loopback RemoteMessenger of one node for one message type.
// Send is safe for concurrent use; FlushAndAwait and SetReceiveSink are called
// by the phase-driving goroutine only.
type Messenger[M ir.Message[M]] struct {
	node   int
	bus    *bus[M]
	owner  func(id int64) int
	logger *slog.Logger

	mu       sync.Mutex
	outbound [][]M
	sink     broker.Broker[M]

	pending   atomic.Int64
	delivered atomic.Uint64
}

var _ broker.RemoteMessenger[ir.Visit] = (*Messenger[ir.Visit])(nil)

func newMessenger[M ir.Message[M]](node int, b *bus[M], owner func(int64) int, logger *slog.Logger) *Messenger[M] {
	return &Messenger[M]{
		node:     node,
		bus:      b,
		owner:    owner,
		logger:   logger,
		outbound: make([][]M, len(b.inboxes)),
	}
}

// IsRemote reports whether m's destination is owned by another node.
func (m *Messenger[M]) IsRemote(msg M) bool {
	return m.owner(msg.Destination()) != m.node
}

// SetReceiveSink registers where inbound messages land on the next
// FlushAndAwait.
func (m *Messenger[M]) SetReceiveSink(sink broker.Broker[M]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// Send buffers batch per destination node.
func (m *Messenger[M]) Send(batch []M) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range batch {
		dst := msg.Destination()
		node := m.owner(dst)
		if node < 0 || node >= len(m.outbound) {
			invariant.Fail(invariant.ErrCodeUnknownDestination, m.bus.kind, dst,
				"placement returned node %d of %d", node, len(m.outbound))
		}
		m.outbound[node] = append(m.outbound[node], msg)
	}
	m.pending.Add(int64(len(batch)))
}

// FlushAndAwait delivers the buffered batches to their nodes, waits for every
// node of the cluster to do the same, and applies this node's inbox to the
// registered sink. It returns only after every node has drained its inbox.
func (m *Messenger[M]) FlushAndAwait() {
	m.mu.Lock()
	outbound := m.outbound
	m.outbound = make([][]M, len(outbound))
	sink := m.sink
	m.mu.Unlock()

	var g errgroup.Group
	sent := 0
	for node, batch := range outbound {
		if len(batch) == 0 {
			continue
		}
		sent += len(batch)
		g.Go(func() error {
			if err := m.bus.deliver(node, batch); err != nil {
				return err
			}
			m.pending.Add(-int64(len(batch)))
			m.delivered.Add(uint64(len(batch)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		invariant.Fail(invariant.ErrCodeQueueMisuse, m.bus.kind, int64(m.node), "%v", err)
	}

	m.bus.arrive.await()

	received := 0
	for _, batch := range m.bus.take(m.node) {
		if sink == nil {
			invariant.Fail(invariant.ErrCodeQueueMisuse, m.bus.kind, int64(m.node),
				"%d inbound messages but no receive sink registered", len(batch))
		}
		sink.Send(batch)
		received += len(batch)
	}

	m.bus.leave.await()

	m.logger.Debug("remote flush",
		"kind", m.bus.kind,
		"node", m.node,
		"sent", sent,
		"received", received,
	)
}

// Pending returns how many sent messages have not been delivered yet.
func (m *Messenger[M]) Pending() int64 { return m.pending.Load() }

// Delivered returns how many messages this messenger handed to nodes so far.
func (m *Messenger[M]) Delivered() uint64 { return m.delivered.Load() }
