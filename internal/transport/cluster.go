// Package transport provides an in-process loopback cluster implementing the
// remote messaging contract of the Distributed strategy.
//
// Every node of a Cluster gets one Messenger per message type. Sends to a
// messenger are buffered per destination node and only move during
// FlushAndAwait, which delivers the buffered batches into the peers' inboxes,
// waits until every node of the cluster has done the same, and then applies
// the node's own inbox to the sink registered for the phase. Wire encoding is
// not modelled: batches are handed over as Go values.
package transport

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/ir"
)

// ErrClosed is returned when delivering into a closed cluster.
var ErrClosed = errors.New("transport: cluster closed")

// Placement decides which node owns every entity.
type Placement interface {
	AgentNode(id ir.AgentID) int
	LocationNode(id ir.LocationID) int
}

// Modulo places entity id on node id mod n.
type Modulo int

// AgentNode implements Placement.
func (m Modulo) AgentNode(id ir.AgentID) int { return mod(int64(id), int64(m)) }

// LocationNode implements Placement.
func (m Modulo) LocationNode(id ir.LocationID) int { return mod(int64(id), int64(m)) }

func mod(id, n int64) int {
	r := id % n
	if r < 0 {
		r += n
	}
	return int(r)
}

// Option configures a Cluster.
type Option func(*Cluster)

// WithLogger sets the logger for flush diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cluster) {
		c.logger = l
	}
}

// Cluster wires n loopback nodes together.
type Cluster struct {
	placement Placement
	logger    *slog.Logger
	nodes     []*Node

	visits   *bus[ir.Visit]
	outcomes *bus[ir.InfectionOutcome]
	reports  *bus[ir.ContactReport]
}

// NewCluster creates n nodes sharing placement. Panics if n < 1.
func NewCluster(n int, placement Placement, opts ...Option) *Cluster {
	if n < 1 {
		panic(fmt.Sprintf("transport: cluster needs at least one node, got %d", n))
	}
	c := &Cluster{
		placement: placement,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.visits = newBus[ir.Visit]("visit", n)
	c.outcomes = newBus[ir.InfectionOutcome]("outcome", n)
	c.reports = newBus[ir.ContactReport]("report", n)

	agentOwner := func(id int64) int { return placement.AgentNode(ir.AgentID(id)) }
	locationOwner := func(id int64) int { return placement.LocationNode(ir.LocationID(id)) }

	c.nodes = make([]*Node, n)
	for i := range c.nodes {
		c.nodes[i] = &Node{
			id:       i,
			visits:   newMessenger(i, c.visits, locationOwner, c.logger),
			outcomes: newMessenger(i, c.outcomes, agentOwner, c.logger),
			reports:  newMessenger(i, c.reports, agentOwner, c.logger),
		}
	}
	return c
}

// Len returns the number of nodes.
func (c *Cluster) Len() int { return len(c.nodes) }

// Node returns node i.
func (c *Cluster) Node(i int) *Node { return c.nodes[i] }

// Placement returns the placement the cluster routes by.
func (c *Cluster) Placement() Placement { return c.placement }

// Close rejects further deliveries. Flushing a node with remote messages
// after Close is fatal.
func (c *Cluster) Close() {
	c.visits.close()
	c.outcomes.close()
	c.reports.close()
}

// Node is one member of a Cluster. It provides the per-message-type
// messengers the Distributed strategy needs.
type Node struct {
	id       int
	visits   *Messenger[ir.Visit]
	outcomes *Messenger[ir.InfectionOutcome]
	reports  *Messenger[ir.ContactReport]
}

// ID returns the node index.
func (n *Node) ID() int { return n.id }

// Visits returns the visit messenger.
func (n *Node) Visits() broker.RemoteMessenger[ir.Visit] { return n.visits }

// Outcomes returns the infection outcome messenger.
func (n *Node) Outcomes() broker.RemoteMessenger[ir.InfectionOutcome] { return n.outcomes }

// Reports returns the contact report messenger.
func (n *Node) Reports() broker.RemoteMessenger[ir.ContactReport] { return n.reports }

// Pending returns how many remote sends of this node are not yet delivered.
func (n *Node) Pending() int64 {
	return n.visits.Pending() + n.outcomes.Pending() + n.reports.Pending()
}

// Delivered returns how many messages this node has handed to peers so far.
func (n *Node) Delivered() uint64 {
	return n.visits.Delivered() + n.outcomes.Delivered() + n.reports.Delivered()
}
