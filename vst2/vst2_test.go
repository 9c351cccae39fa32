package vst2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/signal"
	"github.com/dudk/split/vst2"
)

// plugin doubles every sample.
type plugin struct {
	sampleRate, bufferSize, channels int
	resumed, closed                  bool
	calls                            []int
	drop                             bool
}

func (p *plugin) SetSampleRate(r int)          { p.sampleRate = r }
func (p *plugin) SetBufferSize(n int)          { p.bufferSize = n }
func (p *plugin) SetSpeakerArrangement(ch int) { p.channels = ch }
func (p *plugin) Resume()                      { p.resumed = true }
func (p *plugin) Suspend()                     { p.resumed = false }
func (p *plugin) Close() error {
	p.closed = true
	return nil
}

func (p *plugin) Process(in [][]float64) [][]float64 {
	p.calls = append(p.calls, len(in[0]))
	if p.drop {
		return in[:1]
	}
	for c := range in {
		for i := range in[c] {
			in[c][i] *= 2
		}
	}
	return in
}

func TestUnit(t *testing.T) {
	format := split.Format{SampleRate: 44100, Channels: 2, MaxFrames: 8}
	tests := []struct {
		description string
		buffer      func() signal.Buffer
	}{
		{
			description: "planar",
			buffer: func() signal.Buffer {
				buf, err := signal.Planar(signal.Alloc(2, 8))
				require.NoError(t, err)
				return buf
			},
		},
		{
			description: "interleaved",
			buffer: func() signal.Buffer {
				buf, err := signal.Interleaved(make([]float64, 16), 2)
				require.NoError(t, err)
				return buf
			},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			p := &plugin{}
			u := vst2.New(p)
			assert.Equal(t, "vst2", u.Meta().Name)
			require.NoError(t, u.Init(format))
			assert.Equal(t, 44100, p.sampleRate)
			assert.Equal(t, 8, p.bufferSize)
			assert.Equal(t, 2, p.channels)
			assert.True(t, p.resumed)

			buf := test.buffer()
			for c := 0; c < 2; c++ {
				for i := 0; i < 8; i++ {
					buf.Set(c, i, 1)
				}
			}
			s := event.NewStream(4)
			s.Reset(8)
			require.NoError(t, s.Push(event.Note(5, 0, 60, 100)))
			require.NoError(t, split.Schedule(buf, s, u))

			assert.Equal(t, []int{5, 3}, p.calls)
			assert.Equal(t, int64(8), u.Position())
			for c := 0; c < 2; c++ {
				for i := 0; i < 8; i++ {
					assert.Equal(t, 2.0, buf.At(c, i))
				}
			}

			require.NoError(t, u.Close())
			assert.False(t, p.resumed)
			assert.True(t, p.closed)
		})
	}
}

func TestUnitChannels(t *testing.T) {
	p := &plugin{drop: true}
	u := vst2.New(p)
	require.NoError(t, u.Init(split.Format{SampleRate: 44100, Channels: 2, MaxFrames: 4}))
	defer u.Close()
	buf, err := signal.Planar(signal.Alloc(2, 4))
	require.NoError(t, err)
	assert.ErrorIs(t, u.Process(buf, nil), vst2.ErrChannels)
}
