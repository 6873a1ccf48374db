package broker

import "github.com/roach88/stepwise/internal/invariant"

// DoubleBuffer is a single-goroutine queue with separate fill and drain
// buffers. It is NOT safe for concurrent producers.
type DoubleBuffer[M any] struct {
	name     string
	fill     []M
	drain    []M
	draining bool
}

// NewDoubleBuffer creates an empty queue. name appears in diagnostics.
func NewDoubleBuffer[M any](name string) *DoubleBuffer[M] {
	return &DoubleBuffer[M]{name: name}
}

// Send appends batch to the fill buffer.
func (q *DoubleBuffer[M]) Send(batch []M) {
	q.fill = append(q.fill, batch...)
}

// Len returns the number of messages waiting in the fill buffer.
func (q *DoubleBuffer[M]) Len() int {
	return len(q.fill)
}

// Consume swaps fill into drain and returns a handle over the drained
// messages. The handle must be released before the next Consume.
func (q *DoubleBuffer[M]) Consume() *Drained[M] {
	if q.draining {
		invariant.Fail(invariant.ErrCodeQueueMisuse, q.name, 0, "consume while a drain handle is outstanding")
	}
	q.fill, q.drain = q.drain, q.fill
	q.draining = true
	return &Drained[M]{q: q}
}

// Drained is a scoped handle over the drain side of a DoubleBuffer.
type Drained[M any] struct {
	q *DoubleBuffer[M]
}

// Messages returns the drained messages. Callers may sort them in place;
// the slice is invalid after Release.
func (d *Drained[M]) Messages() []M {
	return d.q.drain
}

// Release clears the drained messages. When nothing was sent since Consume,
// the buffers are swapped back so the larger allocation keeps receiving sends.
func (d *Drained[M]) Release() {
	q := d.q
	if q == nil {
		return
	}
	d.q = nil

	clear(q.drain)
	q.drain = q.drain[:0]
	if len(q.fill) == 0 {
		q.fill, q.drain = q.drain, q.fill
	}
	q.draining = false
}
