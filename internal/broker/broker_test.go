package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/testutil"
)

func TestBuffered_ForwardsAtThreshold(t *testing.T) {
	rec := testutil.NewRecorder[int]()
	b := NewBuffered[int](rec, 3)

	b.Send([]int{1, 2})
	assert.Equal(t, 0, rec.Batches(), "below threshold nothing is forwarded")
	assert.Equal(t, 2, b.Pending())

	b.Send([]int{3})
	assert.Equal(t, 1, rec.Batches())
	assert.Equal(t, []int{1, 2, 3}, rec.Messages())
	assert.Equal(t, 0, b.Pending())
}

func TestBuffered_FlushForwardsRemainder(t *testing.T) {
	rec := testutil.NewRecorder[int]()
	b := NewBuffered[int](rec, 10)

	b.Send([]int{7})
	b.Flush()
	b.Flush()

	require.Equal(t, 1, rec.Batches(), "empty flush must not forward")
	assert.Equal(t, []int{7}, rec.Messages())
}

func TestBuffered_DefaultLimit(t *testing.T) {
	b := NewBuffered[int](Func[int](func([]int) {}), 0)
	assert.Equal(t, DefaultBufferSize, b.limit)
}

func TestBuffered_LargeBatchGrows(t *testing.T) {
	rec := testutil.NewRecorder[int]()
	b := NewBuffered[int](rec, 2)

	b.Send([]int{1, 2, 3, 4, 5})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.Messages())
}

func TestFunc_Send(t *testing.T) {
	var got []string
	f := Func[string](func(batch []string) { got = append(got, batch...) })
	f.Send([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, got)
}
