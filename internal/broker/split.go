package broker

// RemoteMessenger moves one message type between nodes for the Distributed
// strategy. The wire format is the transport's business.
//
// Send must be safe for concurrent use. FlushAndAwait is a barrier: it must
// not return until every remote send of this phase has been delivered and
// every remotely originated message for this node has been applied to the
// sink registered by SetReceiveSink.
type RemoteMessenger[M any] interface {
	Broker[M]

	// IsRemote reports whether m is addressed to an entity owned by another node.
	IsRemote(m M) bool

	// SetReceiveSink registers where inbound messages for the next phase land.
	SetReceiveSink(sink Broker[M])

	// FlushAndAwait blocks until all in-flight remote sends and receives settle.
	FlushAndAwait()
}

// Split routes each message either to the local queue or to the remote
// messenger, through one Buffered per side. Like Buffered it is owned by a
// single worker; the local queue and the messenger take care of concurrency.
type Split[M any] struct {
	isRemote func(M) bool
	local    *Buffered[M]
	remote   *Buffered[M]
}

// NewSplit wraps a local sink and a remote messenger. limit is the buffering
// threshold of each side.
func NewSplit[M any](local Broker[M], remote RemoteMessenger[M], limit int) *Split[M] {
	return &Split[M]{
		isRemote: remote.IsRemote,
		local:    NewBuffered(local, limit),
		remote:   NewBuffered[M](remote, limit),
	}
}

// Send classifies every message and buffers it on its side.
func (s *Split[M]) Send(batch []M) {
	for i := range batch {
		if s.isRemote(batch[i]) {
			s.remote.Send(batch[i : i+1])
		} else {
			s.local.Send(batch[i : i+1])
		}
	}
}

// Flush forwards both sides.
func (s *Split[M]) Flush() {
	s.local.Flush()
	s.remote.Flush()
}
