package broker

// Broker is a send-only sink for batches of M.
type Broker[M any] interface {
	Send(batch []M)
}

// Flusher is implemented by brokers that buffer. Flush must be called at the
// end of a unit of work, before the phase that produced the messages is
// considered complete; buffered messages are otherwise lost for the timestep.
type Flusher interface {
	Flush()
}

// Func adapts a function to the Broker interface.
type Func[M any] func(batch []M)

// Send calls f(batch).
func (f Func[M]) Send(batch []M) { f(batch) }

// DefaultBufferSize is the Buffered threshold used when none is configured.
const DefaultBufferSize = 256

// Buffered accumulates sends and forwards them downstream once limit messages
// are pending, amortizing per-call cost (locking, routing) over many small
// producers. Not safe for concurrent use: each worker owns its own.
type Buffered[M any] struct {
	next  Broker[M]
	buf   []M
	limit int
}

// NewBuffered wraps next. A limit <= 0 selects DefaultBufferSize.
func NewBuffered[M any](next Broker[M], limit int) *Buffered[M] {
	if limit <= 0 {
		limit = DefaultBufferSize
	}
	return &Buffered[M]{
		next:  next,
		buf:   make([]M, 0, limit),
		limit: limit,
	}
}

// Send appends batch and forwards when the threshold is reached.
func (b *Buffered[M]) Send(batch []M) {
	b.buf = append(b.buf, batch...)
	if len(b.buf) >= b.limit {
		b.Flush()
	}
}

// Flush forwards everything pending downstream.
func (b *Buffered[M]) Flush() {
	if len(b.buf) == 0 {
		return
	}
	b.next.Send(b.buf)
	clear(b.buf)
	b.buf = b.buf[:0]
}

// Pending returns the number of buffered, unforwarded messages.
func (b *Buffered[M]) Pending() int {
	return len(b.buf)
}
