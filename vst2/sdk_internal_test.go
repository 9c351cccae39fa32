package vst2

import (
	"testing"

	"github.com/dudk/vst2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/split"
	"github.com/dudk/split/signal"
)

func TestAnswer(t *testing.T) {
	var tr transport
	tr.sampleRate.Store(48000)
	tr.blockSize.Store(256)
	tests := []struct {
		opcode   vst2.MasterOpcode
		value    int
		answered bool
	}{
		{opcode: vst2.AudioMasterGetSampleRate, value: 48000, answered: true},
		{opcode: vst2.AudioMasterGetBlockSize, value: 256, answered: true},
		{opcode: vst2.AudioMasterIdle},
	}
	for _, test := range tests {
		v, ok := tr.answer(test.opcode)
		assert.Equal(t, test.answered, ok)
		assert.Equal(t, test.value, v)
	}
}

func TestMusicalPosition(t *testing.T) {
	tests := []struct {
		description string
		sampleRate  int64
		position    int64
		ppq, bar    float64
	}{
		{description: "not initialized", ppq: 1},
		{description: "start", sampleRate: 48000, ppq: 1},
		// a beat of 120 bpm is half a second.
		{description: "second beat", sampleRate: 48000, position: 24000, ppq: 2},
		{description: "second bar", sampleRate: 48000, position: 96000, ppq: 5, bar: 1},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			var tr transport
			tr.sampleRate.Store(test.sampleRate)
			tr.position.Store(test.position)
			ppq, bar := tr.musicalPosition()
			assert.Equal(t, test.ppq, ppq)
			assert.Equal(t, test.bar, bar)
		})
	}
}

// passPlugin returns samples as is.
type passPlugin struct{}

func (passPlugin) SetSampleRate(int)                  {}
func (passPlugin) SetBufferSize(int)                  {}
func (passPlugin) SetSpeakerArrangement(int)          {}
func (passPlugin) Resume()                            {}
func (passPlugin) Suspend()                           {}
func (passPlugin) Process(in [][]float64) [][]float64 { return in }
func (passPlugin) Close() error                       { return nil }

func TestTransportFollowsUnit(t *testing.T) {
	u := New(passPlugin{})
	require.NoError(t, u.Init(split.Format{SampleRate: 1000, Channels: 1, MaxFrames: 500}))
	buf, err := signal.Planar(signal.Alloc(1, 500))
	require.NoError(t, err)
	require.NoError(t, u.Process(buf, nil))

	rate, ok := u.answer(vst2.AudioMasterGetSampleRate)
	assert.True(t, ok)
	assert.Equal(t, 1000, rate)
	size, _ := u.answer(vst2.AudioMasterGetBlockSize)
	assert.Equal(t, 500, size)
	ppq, _ := u.musicalPosition()
	assert.Equal(t, 2.0, ppq)

	// position restarts on init.
	require.NoError(t, u.Init(split.Format{SampleRate: 1000, Channels: 1, MaxFrames: 500}))
	ppq, _ = u.musicalPosition()
	assert.Equal(t, 1.0, ppq)
	require.NoError(t, u.Close())
}
