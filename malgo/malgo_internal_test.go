package malgo

import (
	"encoding/binary"
	"math"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/host"
	"github.com/dudk/split/mock"
)

func samples(out []byte) []float32 {
	result := make([]float32, len(out)/bytesPerSample)
	for i := range result {
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*bytesPerSample:]))
	}
	return result
}

func TestProcess(t *testing.T) {
	format := split.Format{SampleRate: 48000, Channels: 2, MaxFrames: 4}
	a, err := New(format)
	require.NoError(t, err)
	q := event.NewQueue(4)
	m := &mock.Unit{Value: 0.5}
	a.engine, err = host.NewEngine(m, format, host.WithQueue(q))
	require.NoError(t, err)
	defer a.engine.Close()
	assert.Equal(t, host.Malgo, a.Kind())

	require.NoError(t, q.TryPush(event.Note(0, 0, 60, 100)))
	out := make([]byte, 10*format.Channels*bytesPerSample)
	a.process(out, nil, 10)

	var calls []int
	for _, c := range m.Calls() {
		calls = append(calls, c.Len)
	}
	assert.Equal(t, []int{4, 4, 2}, calls)
	for _, v := range samples(out) {
		assert.Equal(t, float32(0.5), v)
	}
	_, _, events := m.Count()
	assert.Equal(t, 1, events)
}

func TestProcessShortOutput(t *testing.T) {
	format := split.Format{SampleRate: 48000, Channels: 1, MaxFrames: 8}
	a, err := New(format)
	require.NoError(t, err)
	m := &mock.Unit{Value: 1}
	a.engine, err = host.NewEngine(m, format)
	require.NoError(t, err)
	defer a.engine.Close()

	// device reports more frames than the output holds.
	out := make([]byte, 3*bytesPerSample)
	a.process(out, nil, 6)
	assert.Equal(t, []float32{1, 1, 1}, samples(out))
	_, frames, _ := m.Count()
	assert.Equal(t, 3, frames)
}

func TestBind(t *testing.T) {
	format := split.Format{SampleRate: 44100, Channels: 2, MaxFrames: 4}
	logger, hook := logtest.NewNullLogger()
	a, err := New(format, WithLogger(logger))
	require.NoError(t, err)
	meta := split.Meta{Name: "synth", AudioOutputs: []string{"left", "right", "aux"}}
	e, err := host.NewEngine(&mock.Unit{Declared: &meta}, format)
	require.NoError(t, err)
	defer e.Close()

	a.bind(e)
	assert.Equal(t, []string{"left", "right"}, a.Ports())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "playing synth: left, right", hook.LastEntry().Message)
}
