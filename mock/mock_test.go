package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/host"
	"github.com/dudk/split/mock"
)

var (
	errCall = errors.New("call failed")
	tests   = []struct {
		description string
		channels    int
		blocks      []mock.Block
		unit        mock.Unit
		calls       int
		frames      int
		events      int
		decisions   []host.Decision
	}{
		{
			description: "single channel",
			channels:    1,
			blocks:      []mock.Block{{Frames: 10}, {Frames: 10}},
			unit:        mock.Unit{Value: 0.5},
			calls:       2,
			frames:      20,
			decisions:   []host.Decision{host.Continue, host.Continue},
		},
		{
			description: "events split blocks",
			channels:    2,
			blocks: []mock.Block{
				{Frames: 10, Events: []event.Event{event.Note(3, 0, 60, 100), event.Note(3, 0, 64, 100)}},
				{Frames: 10, Events: []event.Event{event.NoteRelease(0, 0, 60)}},
			},
			unit:      mock.Unit{},
			calls:     3,
			frames:    20,
			events:    3,
			decisions: []host.Decision{host.Continue, host.Continue},
		},
		{
			description: "fail at second call",
			channels:    1,
			blocks:      []mock.Block{{Frames: 10}, {Frames: 10}, {Frames: 10}},
			unit:        mock.Unit{ErrorOnCall: errCall, FailAt: 2},
			calls:       2,
			frames:      20,
			decisions:   []host.Decision{host.Continue, host.Stop},
		},
	}
)

func TestMock(t *testing.T) {
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			unit := test.unit
			format := split.Format{SampleRate: 44100, Channels: test.channels, MaxFrames: 10}
			e, err := host.NewEngine(&unit, format, host.WithPolicy(host.StopOnError))
			require.NoError(t, err)
			assert.True(t, unit.Initialized)
			assert.Equal(t, format, unit.Format())

			adapter := mock.Adapter{Blocks: test.blocks, Channels: test.channels}
			require.NoError(t, adapter.Run(context.Background(), e))
			require.NoError(t, e.Close())
			assert.True(t, unit.Closed)
			assert.Equal(t, test.decisions, adapter.Decisions)

			calls, frames, events := unit.Count()
			assert.Equal(t, test.calls, calls)
			assert.Equal(t, test.frames, frames)
			assert.Equal(t, test.events, events)
		})
	}
}

func TestHooks(t *testing.T) {
	errInit := errors.New("init failed")
	errClose := errors.New("close failed")
	unit := &mock.Unit{Hooks: mock.Hooks{ErrorOnInit: errInit, ErrorOnClose: errClose}}
	assert.ErrorIs(t, unit.Init(split.Format{}), errInit)
	assert.ErrorIs(t, unit.Close(), errClose)

	adapter := mock.Adapter{ErrorOnRun: errCall}
	assert.ErrorIs(t, adapter.Run(context.Background(), nil), errCall)
}
