package split_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/mock"
	"github.com/dudk/split/signal"
)

func TestMetaCheck(t *testing.T) {
	stereo := split.Format{SampleRate: 44100, Channels: 2, MaxFrames: 64}
	tests := []struct {
		description string
		meta        split.Meta
		err         error
	}{
		{
			description: "any channels",
			meta:        split.Meta{Name: "sine"},
		},
		{
			description: "instrument",
			meta:        split.Meta{Name: "synth", AudioOutputs: []string{"left", "right"}},
		},
		{
			description: "mono output",
			meta:        split.Meta{Name: "mono", AudioOutputs: []string{"out"}},
			err:         split.ErrUnsupportedChannels,
		},
		{
			description: "mono input",
			meta: split.Meta{
				Name:         "effect",
				AudioInputs:  []string{"in"},
				AudioOutputs: []string{"left", "right"},
			},
			err: split.ErrUnsupportedChannels,
		},
		{
			description: "no outputs",
			meta:        split.Meta{Name: "sink", AudioOutputs: []string{}},
			err:         split.ErrUnsupportedChannels,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			err := test.meta.Check(stereo)
			if test.err == nil {
				assert.NoError(t, err)
				return
			}
			var ce *split.ConfigError
			assert.ErrorAs(t, err, &ce)
			assert.ErrorIs(t, err, test.err)
			assert.Contains(t, err.Error(), test.meta.Name)
		})
	}
}

func TestMetaNames(t *testing.T) {
	m := split.Meta{AudioInputs: []string{"in"}, AudioOutputs: []string{"left", ""}}
	assert.Equal(t, "in", m.InputName(0))
	assert.Equal(t, "in 2", m.InputName(1))
	assert.Equal(t, []string{"left", "out 2", "out 3"}, m.Outputs(3))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "mock", split.Describe(&mock.Unit{}).Name)
	declared := split.Meta{Name: "declared"}
	assert.Equal(t, declared, split.Describe(&mock.Unit{Declared: &declared}))

	u := split.AsUnit(split.ProcessorFunc(func(signal.Buffer, []event.Event) error { return nil }))
	assert.NotEmpty(t, split.Describe(u).Name)
}
