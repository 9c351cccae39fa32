// Package vst2 hosts VST2 plugins as processing units.
package vst2

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/signal"
)

// ErrChannels is returned when plugin output doesn't match the buffer.
var ErrChannels = errors.New("plugin returned unexpected channels")

// Plugin is a loaded VST2 plugin.
type Plugin interface {
	SetSampleRate(int)
	SetBufferSize(int)
	SetSpeakerArrangement(int)
	Resume()
	Suspend()
	// Process processes planar samples and returns the output.
	Process([][]float64) [][]float64
	Close() error
}

// Unit is a split.Unit that processes sub-blocks with the plugin. Plugin
// is resumed on init and suspended on close. Events are not passed to the
// plugin, they only split the block.
type Unit struct {
	transport
	plugin   Plugin
	name     string
	format   split.Format
	channels [][]float64
	scratch  [][]float64
	resumed  bool
}

// transport is the host state reported to the plugin. Plugins can ask for
// it from any thread.
type transport struct {
	sampleRate atomic.Int64
	blockSize  atomic.Int64
	position   atomic.Int64
}

// New returns a unit of the loaded plugin. Unit closes the plugin.
func New(p Plugin) *Unit {
	return &Unit{plugin: p, name: "vst2"}
}

// Load loads the plugin library. Unit is named after the library file.
func Load(path string) (*Unit, error) {
	u := &Unit{name: strings.TrimSuffix(filepath.Base(path), ext)}
	p, err := open(path, &u.transport)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	u.plugin = p
	return u, nil
}

// Meta implements split.Describer.
func (u *Unit) Meta() split.Meta {
	return split.Meta{Name: u.name}
}

// Init implements split.Unit.
func (u *Unit) Init(f split.Format) error {
	u.format = f
	u.sampleRate.Store(int64(f.SampleRate))
	u.blockSize.Store(int64(f.MaxFrames))
	u.position.Store(0)
	u.plugin.SetSampleRate(f.SampleRate)
	u.plugin.SetBufferSize(f.MaxFrames)
	u.plugin.SetSpeakerArrangement(f.Channels)
	u.channels = make([][]float64, f.Channels)
	u.scratch = signal.Alloc(f.Channels, f.MaxFrames)
	u.plugin.Resume()
	u.resumed = true
	return nil
}

// Process implements split.Processor.
func (u *Unit) Process(buf signal.Buffer, _ []event.Event) error {
	n := buf.Len()
	for c := range u.channels {
		if ch := buf.Channel(c); ch != nil {
			u.channels[c] = ch
			continue
		}
		u.channels[c] = u.scratch[c][:n]
		for i := range u.channels[c] {
			u.channels[c][i] = buf.At(c, i)
		}
	}
	out := u.plugin.Process(u.channels)
	if len(out) != len(u.channels) {
		return fmt.Errorf("%d channels: %w", len(out), ErrChannels)
	}
	for c := range out {
		if len(out[c]) != n {
			return fmt.Errorf("channel %d has %d frames: %w", c, len(out[c]), ErrChannels)
		}
		if ch := buf.Channel(c); ch != nil {
			copy(ch, out[c])
			continue
		}
		for i, v := range out[c] {
			buf.Set(c, i, v)
		}
	}
	u.position.Add(int64(n))
	return nil
}

// Position returns number of frames processed since init.
func (u *Unit) Position() int64 {
	return u.position.Load()
}

// Close implements split.Unit.
func (u *Unit) Close() error {
	if u.resumed {
		u.plugin.Suspend()
		u.resumed = false
	}
	return u.plugin.Close()
}
