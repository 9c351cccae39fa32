package tap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/split"
	"github.com/dudk/split/host"
	"github.com/dudk/split/mock"
	"github.com/dudk/split/signal"
	"github.com/dudk/split/tap"
)

var format = split.Format{SampleRate: 1000, Channels: 2, MaxFrames: 4}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memSink struct {
	data [][]float64
	err  error
}

func (s *memSink) Write(buf signal.Buffer) error {
	if s.err != nil {
		return s.err
	}
	if s.data == nil {
		s.data = make([][]float64, buf.NumChannels())
	}
	for c := range s.data {
		for i := 0; i < buf.Len(); i++ {
			s.data[c] = append(s.data[c], buf.At(c, i))
		}
	}
	return nil
}

func newBuffer(t *testing.T, frames int) signal.Buffer {
	t.Helper()
	buf, err := signal.Planar(signal.Alloc(format.Channels, frames))
	require.NoError(t, err)
	return buf
}

func TestRecorder(t *testing.T) {
	sink := &memSink{}
	rec, err := tap.New(format, sink, 8*time.Millisecond)
	require.NoError(t, err)
	e, err := host.NewEngine(&mock.Unit{Value: 0.5}, format, host.WithTap(rec))
	require.NoError(t, err)
	defer e.Close()

	for _, n := range []int{4, 3} {
		require.Equal(t, host.Continue, e.Block(newBuffer(t, n)))
	}
	// third block doesn't fit into the ring buffer.
	e.Block(newBuffer(t, 4))
	assert.Equal(t, uint64(4), rec.Dropped())

	require.NoError(t, rec.Flush())
	assert.Equal(t, uint64(7), rec.Recorded())
	require.Len(t, sink.data[1], 7)
	for _, v := range sink.data[1] {
		assert.Equal(t, 0.5, v)
	}

	// space is available after flush.
	e.Block(newBuffer(t, 4))
	require.NoError(t, rec.Flush())
	assert.Equal(t, uint64(11), rec.Recorded())
}

func TestRecorderMuted(t *testing.T) {
	sink := &memSink{}
	rec, err := tap.New(format, sink, time.Second)
	require.NoError(t, err)
	m := &mock.Unit{Value: 1, ErrorOnCall: errors.New("call failed")}
	e, err := host.NewEngine(m, format, host.WithTap(rec), host.WithPolicy(host.MuteOnError))
	require.NoError(t, err)
	defer e.Close()

	require.Equal(t, host.Mute, e.Block(newBuffer(t, 4)))
	require.NoError(t, rec.Flush())
	assert.Equal(t, []float64{0, 0, 0, 0}, sink.data[0])
}

func TestRecorderRun(t *testing.T) {
	sink := &memSink{}
	rec, err := tap.New(format, sink, time.Second, tap.WithPeriod(time.Millisecond))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- rec.Run(ctx)
	}()
	rec.Write(newBuffer(t, 4))
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, uint64(4), rec.Recorded())

	errSink := errors.New("sink failed")
	sink.err = errSink
	rec.Write(newBuffer(t, 4))
	assert.ErrorIs(t, rec.Run(ctx), errSink)
}
