package testutil

import "sync"

// Recorder is a Broker that keeps every message it is sent.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Recorder[M any] struct {
	mu      sync.Mutex
	msgs    []M
	batches int
}

// NewRecorder creates an empty recorder.
func NewRecorder[M any]() *Recorder[M] {
	return &Recorder[M]{}
}

// Send copies batch into the recorder.
func (r *Recorder[M]) Send(batch []M) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, batch...)
	r.batches++
}

// Messages returns a copy of everything recorded, in arrival order.
func (r *Recorder[M]) Messages() []M {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]M, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Batches returns how many Send calls were made.
func (r *Recorder[M]) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

// Reset forgets everything recorded.
func (r *Recorder[M]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
	r.batches = 0
}
