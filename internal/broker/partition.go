package broker

import "github.com/roach88/stepwise/internal/invariant"

// DefaultChunkSize is the number of entities per chunk when none is configured.
const DefaultChunkSize = 128

// Chunk is a contiguous range [Lo, Hi) of a sorted entity list.
type Chunk struct {
	Index int
	Lo    int
	Hi    int
}

// Len returns the number of entities in the chunk.
func (c Chunk) Len() int { return c.Hi - c.Lo }

// Partitioner assigns every entity of a sorted list to one fixed-size chunk
// and maps entity ids back to their chunk.
//
// Built once per strategy instance, then read-only: safe for concurrent
// lookups without locking.
type Partitioner struct {
	kind   string
	chunks []Chunk
	index  map[int64]int
}

// NewPartitioner chunks ids (which must be strictly ascending) into groups of
// chunkSize in list order. kind names the entity kind for diagnostics.
// A chunkSize <= 0 selects DefaultChunkSize.
func NewPartitioner(kind string, ids []int64, chunkSize int) *Partitioner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	p := &Partitioner{
		kind:   kind,
		chunks: make([]Chunk, 0, (len(ids)+chunkSize-1)/chunkSize),
		index:  make(map[int64]int, len(ids)),
	}

	for lo := 0; lo < len(ids); lo += chunkSize {
		hi := min(lo+chunkSize, len(ids))
		c := Chunk{Index: len(p.chunks), Lo: lo, Hi: hi}
		for i := lo; i < hi; i++ {
			if i > 0 && ids[i] <= ids[i-1] {
				invariant.Fail(invariant.ErrCodeUnsortedEntities, kind, ids[i],
					"entity ids must be strictly ascending (previous %d)", ids[i-1])
			}
			p.index[ids[i]] = c.Index
		}
		p.chunks = append(p.chunks, c)
	}

	return p
}

// NumChunks returns the number of chunks.
func (p *Partitioner) NumChunks() int { return len(p.chunks) }

// Chunks returns the chunks in list order. The slice must not be modified.
func (p *Partitioner) Chunks() []Chunk { return p.chunks }

// ChunkFor returns the chunk index owning id.
// An unknown id is a fatal configuration error.
func (p *Partitioner) ChunkFor(id int64) int {
	c, ok := p.index[id]
	if !ok {
		invariant.Fail(invariant.ErrCodeUnknownDestination, p.kind, id, "no chunk owns destination")
	}
	return c
}
