package offline_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/dudk/split/event"
	"github.com/dudk/split/offline"
)

func TestTrack(t *testing.T) {
	var tr offline.Track
	require.NoError(t, tr.Add(10, event.Note(0, 0, 1, 100)))
	require.NoError(t, tr.Add(3, event.Note(0, 0, 2, 100)))
	require.NoError(t, tr.Add(10, event.Note(0, 0, 3, 100)))
	require.NoError(t, tr.Add(0, event.Note(0, 0, 4, 100)))
	assert.ErrorIs(t, tr.Add(-1, event.Note(0, 0, 5, 100)), event.ErrOutOfRange)

	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, 11, tr.Frames())
	keys := []uint8{}
	for _, e := range tr.Events() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []uint8{4, 2, 1, 3}, keys)

	tests := []struct {
		start, frames int
		offsets       []int
		keys          []uint8
	}{
		{start: 0, frames: 8, offsets: []int{0, 3}, keys: []uint8{4, 2}},
		{start: 8, frames: 8, offsets: []int{2, 2}, keys: []uint8{1, 3}},
		{start: 4, frames: 6},
		{start: 16, frames: 8},
	}
	for _, test := range tests {
		events := tr.Block(test.start, test.frames, nil)
		var (
			offsets []int
			keys    []uint8
		)
		for _, e := range events {
			offsets = append(offsets, e.Offset())
			keys = append(keys, e.Key())
		}
		assert.Equal(t, test.offsets, offsets)
		assert.Equal(t, test.keys, keys)
	}

	var empty offline.Track
	assert.Equal(t, 0, empty.Frames())
}

func TestReadScript(t *testing.T) {
	tests := []struct {
		description string
		script      string
		frames      []int
		kinds       []event.Kind
		err         bool
	}{
		{
			description: "frames and times",
			script: `
events:
  - time: 500ms
    type: note_off
    key: 60
  - frame: 10
    type: note_on
    channel: 1
    key: 60
    velocity: 100
  - frame: 10
    type: control
    controller: 7
    value: 64
  - time: 1s
    type: bend
    value: -8192
  - frame: 0
    type: program
    value: 3
`,
			frames: []int{0, 10, 10, 500, 1000},
			kinds: []event.Kind{
				event.ProgramChange,
				event.NoteOn,
				event.ControlChange,
				event.NoteOff,
				event.PitchBend,
			},
		},
		{
			description: "empty",
			script:      "",
		},
		{
			description: "unknown type",
			script:      "events:\n  - frame: 1\n    type: tempo\n",
			err:         true,
		},
		{
			description: "no position",
			script:      "events:\n  - type: note_on\n",
			err:         true,
		},
		{
			description: "both positions",
			script:      "events:\n  - type: note_on\n    frame: 1\n    time: 1ms\n",
			err:         true,
		},
		{
			description: "bad duration",
			script:      "events:\n  - type: note_on\n    time: soon\n",
			err:         true,
		},
		{
			description: "bend out of range",
			script:      "events:\n  - type: bend\n    frame: 0\n    value: 9000\n",
			err:         true,
		},
		{
			description: "negative frame",
			script:      "events:\n  - type: note_on\n    frame: -1\n",
			err:         true,
		},
		{
			description: "not yaml",
			script:      "events: [",
			err:         true,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			tr, err := offline.ReadScript(strings.NewReader(test.script), 1000)
			if test.err {
				assert.ErrorIs(t, err, offline.ErrInvalidScript)
				return
			}
			require.NoError(t, err)
			var (
				frames []int
				kinds  []event.Kind
			)
			for _, e := range tr.Events() {
				frames = append(frames, e.Offset())
				kinds = append(kinds, e.Kind())
			}
			assert.Equal(t, test.frames, frames)
			assert.Equal(t, test.kinds, kinds)
		})
	}
}

func TestReadSMF(t *testing.T) {
	clock := smf.MetricTicks(96)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(96, midi.NoteOff(0, 60))
	tr.Add(48, midi.ControlChange(0, 7, 64))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = clock
	require.NoError(t, s.Add(tr))
	var b bytes.Buffer
	_, err := s.WriteTo(&b)
	require.NoError(t, err)

	track, err := offline.ReadSMF(&b, 1000)
	require.NoError(t, err)
	var (
		frames []int
		kinds  []event.Kind
	)
	for _, e := range track.Events() {
		frames = append(frames, e.Offset())
		kinds = append(kinds, e.Kind())
	}
	assert.Equal(t, []int{0, 500, 750}, frames)
	assert.Equal(t, []event.Kind{event.NoteOn, event.NoteOff, event.ControlChange}, kinds)

	_, err = offline.ReadSMF(strings.NewReader("not a midi file"), 1000)
	assert.Error(t, err)
}
