package trace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/signal"
	"github.com/dudk/split/trace"
)

func record(t *testing.T, offsets ...int) *trace.Recorder {
	t.Helper()
	r := &trace.Recorder{}
	s := split.New(split.WithObserver(r))
	stream := event.NewStream(8)
	for block := 0; block < 2; block++ {
		stream.Reset(8)
		for _, o := range offsets {
			require.NoError(t, stream.Push(event.Note(o, 0, 60, 100)))
		}
		buf, err := signal.Planar(signal.Alloc(1, 8))
		require.NoError(t, err)
		require.NoError(t, s.Schedule(buf, stream, split.ProcessorFunc(func(signal.Buffer, []event.Event) error {
			return nil
		})))
	}
	return r
}

func TestRecorder(t *testing.T) {
	r := record(t, 2, 2, 5)
	entries := r.Entries()
	require.Len(t, entries, 6)
	assert.Equal(t, 0, entries[2].Block)
	assert.Equal(t, 1, entries[3].Block)
	assert.Equal(t, 3, entries[1].Len())
	assert.Len(t, entries[1].Events, 2)
	assert.Equal(t, "block 0 [0, 2)", entries[0].String())
	assert.Contains(t, entries[2].String(), "5:2:note on/903c64")

	r.Reset()
	assert.Empty(t, r.Entries())
}

func TestDiff(t *testing.T) {
	a := record(t, 2, 2, 5)
	b := record(t, 2, 2, 5)
	diff, err := trace.Diff("a", a, "b", b)
	require.NoError(t, err)
	assert.Empty(t, diff)

	c := record(t, 2, 6)
	diff, err = trace.Diff("a", a, "c", c)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- a")
	assert.Contains(t, diff, "+block 0 [2, 6)")
}

func TestDump(t *testing.T) {
	dump := trace.Dump(record(t, 1))
	assert.Contains(t, dump, "Start: (int) 1")
}
