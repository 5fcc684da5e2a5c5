package ringbuffer

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = New(-4)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestPushNeverOverwrites(t *testing.T) {
	b, err := New(8)
	require.NoError(t, err)

	assert.Equal(t, 5, b.Push([]byte("hello")))
	assert.Equal(t, 3, b.Push([]byte("world")), "only the free space is accepted")
	assert.Equal(t, 0, b.Push([]byte("!")))
	assert.Equal(t, 8, b.AvailableForRead())
	assert.Equal(t, 0, b.AvailableForWrite())

	out := make([]byte, 16)
	n := b.Pop(out)
	assert.Equal(t, "hellowor", string(out[:n]))
	assert.Equal(t, 0, b.AvailableForRead())
}

func TestPopWrapsAround(t *testing.T) {
	b, err := New(6)
	require.NoError(t, err)

	b.Push([]byte("abcd"))
	out := make([]byte, 3)
	require.Equal(t, 3, b.Pop(out))
	assert.Equal(t, "abc", string(out))

	// "d" stays at index 3, "efghi" lands on 4,5,0,1,2
	assert.Equal(t, 5, b.Push([]byte("efghij")))

	first, second := b.Peek(10)
	assert.Equal(t, "def", string(first))
	assert.Equal(t, "ghi", string(second))

	out = make([]byte, 10)
	n := b.Pop(out)
	assert.Equal(t, "defghi", string(out[:n]))
}

func TestPeekAndDiscard(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	b.Push([]byte("wxyz"))

	first, second := b.Peek(2)
	assert.Equal(t, "wx", string(first))
	assert.Empty(t, second)
	assert.Equal(t, 4, b.AvailableForRead(), "peek must not consume")

	assert.Equal(t, 2, b.Discard(2))
	assert.Equal(t, 2, b.Discard(10), "discard is bounded by what is held")
	assert.Equal(t, 0, b.Discard(1))
}

func TestReserveAndCommit(t *testing.T) {
	b, err := New(5)
	require.NoError(t, err)
	b.Push([]byte("abc"))
	b.Discard(3)

	first, second := b.Reserve(4)
	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
	copy(first, "12")
	copy(second, "34")
	assert.Equal(t, 0, b.AvailableForRead(), "reserved bytes are not readable yet")

	assert.Equal(t, 4, b.Commit(4))
	out := make([]byte, 4)
	b.Pop(out)
	assert.Equal(t, "1234", string(out))
}

func TestReset(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	b.Push([]byte("abc"))
	b.Reset()
	assert.Equal(t, 0, b.AvailableForRead())
	assert.Equal(t, 4, b.AvailableForWrite())
	assert.Equal(t, 4, b.Cap())
}

// Random push/pop sequences against a bytes.Buffer model: the count stays in
// [0, capacity] and pop returns exactly the bytes pushed and not yet popped.
func TestRandomSequencesMatchModel(t *testing.T) {
	for _, capacity := range []int{1, 7, 64, 1000} {
		rng := rand.New(rand.NewPCG(uint64(capacity), 42))
		b, err := New(capacity)
		require.NoError(t, err)

		var model bytes.Buffer
		var next byte
		for step := 0; step < 5000; step++ {
			if rng.IntN(2) == 0 {
				chunk := make([]byte, rng.IntN(2*capacity+1))
				for i := range chunk {
					chunk[i] = next
					next++
				}
				n := b.Push(chunk)
				assert.Equal(t, min(len(chunk), capacity-model.Len()), n)
				model.Write(chunk[:n])
				// unaccepted bytes will be offered again
				next -= byte(len(chunk) - n)
			} else {
				out := make([]byte, rng.IntN(2*capacity+1))
				n := b.Pop(out)
				want := model.Next(len(out))
				require.Equal(t, want, out[:n])
			}

			require.GreaterOrEqual(t, b.AvailableForRead(), 0)
			require.LessOrEqual(t, b.AvailableForRead(), capacity)
			require.Equal(t, model.Len(), b.AvailableForRead())
			require.Equal(t, capacity, b.AvailableForRead()+b.AvailableForWrite())
		}
	}
}
