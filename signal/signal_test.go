package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/dudk/split/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanar(t *testing.T) {
	tests := []struct {
		channels [][]float64
		frames   int
		err      error
	}{
		{
			channels: [][]float64{{1, 2, 3}, {4, 5, 6}},
			frames:   3,
		},
		{
			channels: [][]float64{{1, 2, 3}, {4, 5}},
			err:      signal.ErrChannelLength,
		},
		{
			channels: nil,
			err:      signal.ErrNoChannels,
		},
		{
			channels: [][]float64{{}},
			frames:   0,
		},
	}

	for _, test := range tests {
		b, err := signal.Planar(test.channels)
		if test.err != nil {
			assert.ErrorIs(t, err, test.err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, test.frames, b.Len())
		assert.Equal(t, len(test.channels), b.NumChannels())
		assert.False(t, b.IsInterleaved())
	}
}

func TestInterleaved(t *testing.T) {
	b, err := signal.Interleaved([]float64{1, 10, 2, 20, 3, 30}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())
	assert.True(t, b.IsInterleaved())
	assert.Equal(t, 20.0, b.At(1, 1))
	assert.Nil(t, b.Channel(0))

	_, err = signal.Interleaved([]float64{1, 2, 3}, 2)
	assert.ErrorIs(t, err, signal.ErrInterleavedLength)
	_, err = signal.Interleaved([]float64{1, 2}, 0)
	assert.ErrorIs(t, err, signal.ErrNoChannels)
}

func TestSlice(t *testing.T) {
	testPlanar := func(t *testing.T) {
		b, err := signal.Planar([][]float64{{11, 12, 13, 14}, {21, 22, 23, 24}})
		require.NoError(t, err)

		s := b.Slice(1, 3)
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, 1, s.Offset())
		assert.Equal(t, []float64{12, 13}, s.Channel(0))
		assert.Equal(t, []float64{22, 23}, s.Channel(1))

		// nested slices keep offsets relative to the original block.
		n := s.Slice(1, 2)
		assert.Equal(t, 2, n.Offset())
		assert.Equal(t, 23.0, n.At(1, 0))

		empty := b.Slice(0, 0)
		assert.Equal(t, 0, empty.Len())
		assert.Empty(t, empty.Channel(0))
	}
	testInterleaved := func(t *testing.T) {
		data := []float64{11, 21, 12, 22, 13, 23, 14, 24}
		b, err := signal.Interleaved(data, 2)
		require.NoError(t, err)
		s := b.Slice(2, 4)
		assert.Equal(t, 13.0, s.At(0, 0))
		assert.Equal(t, 24.0, s.At(1, 1))
		s.Set(0, 1, 0)
		assert.Equal(t, 0.0, data[6])
	}
	testPanic := func(t *testing.T) {
		b, err := signal.Planar([][]float64{{1, 2}})
		require.NoError(t, err)
		assert.Panics(t, func() { b.Slice(1, 3) })
		assert.Panics(t, func() { b.Slice(2, 1) })
	}

	t.Run("planar", testPlanar)
	t.Run("interleaved", testInterleaved)
	t.Run("out of range", testPanic)
}

func TestSliceDoesNotAllocate(t *testing.T) {
	b, err := signal.Planar(signal.Alloc(2, 512))
	require.NoError(t, err)
	allocs := testing.AllocsPerRun(100, func() {
		s := b.Slice(10, 100)
		s.Set(1, 5, 0.5)
		_ = s.Channel(0)
	})
	assert.Equal(t, 0.0, allocs)
}

func TestZeroAndCopy(t *testing.T) {
	src, err := signal.Planar([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	data := make([]float64, 6)
	dst, err := signal.Interleaved(data, 2)
	require.NoError(t, err)

	n := src.CopyTo(dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, data)

	dst.Slice(1, 2).Zero()
	assert.Equal(t, []float64{1, 4, 0, 0, 3, 6}, data)

	src.Slice(0, 2).Zero()
	assert.Equal(t, []float64{0, 0, 3}, src.Channel(0))
}

func TestInts(t *testing.T) {
	tests := []struct {
		ints     []int
		bitDepth signal.BitDepth
		expected [][]float64
	}{
		{
			ints:     []int{1, 2, 1, 2, 1, 2},
			expected: [][]float64{{1, 1, 1}, {2, 2, 2}},
		},
		{
			ints:     []int{math.MaxInt16, -math.MaxInt16},
			bitDepth: signal.BitDepth16,
			expected: [][]float64{{1}, {-1}},
		},
	}

	for _, test := range tests {
		b, err := signal.Planar(signal.Alloc(len(test.expected), len(test.expected[0])))
		require.NoError(t, err)
		frames := b.ReadInts(test.ints, test.bitDepth)
		assert.Equal(t, len(test.expected[0]), frames)
		for c := range test.expected {
			assert.Equal(t, test.expected[c], b.Channel(c))
		}
	}

	b, err := signal.Planar([][]float64{{1, 2}, {-0.5, 0}})
	require.NoError(t, err)
	ints := make([]int, 4)
	n := b.WriteInts(ints, signal.BitDepth16)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{math.MaxInt16 - 1, -(math.MaxInt16 - 1) / 2, math.MaxInt16 - 1, 0}, ints)
}

func TestFloat32(t *testing.T) {
	b, err := signal.Planar(signal.Alloc(2, 2))
	require.NoError(t, err)
	b.ReadInterleaved32([]float32{0.5, -0.5, 0.25, -0.25})
	assert.Equal(t, []float64{0.5, 0.25}, b.Channel(0))

	out := [][]float32{make([]float32, 2), make([]float32, 2), {9, 9}}
	b.WritePlanar32(out)
	assert.Equal(t, []float32{-0.5, -0.25}, out[1])
	// extra host channels are silenced.
	assert.Equal(t, []float32{0, 0}, out[2])

	b.ReadPlanar32([][]float32{{1, 2}, {3, 4}})
	inter := make([]float32, 4)
	b.WriteInterleaved32(inter)
	assert.Equal(t, []float32{1, 3, 2, 4}, inter)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Second, signal.DurationOf(44100, 44100))
	assert.Equal(t, int64(22050), signal.FramesIn(44100, 500*time.Millisecond))
	assert.True(t, signal.BitDepth24.Valid())
	assert.False(t, signal.BitDepth(12).Valid())
}
