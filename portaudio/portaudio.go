// Package portaudio runs units on the default portaudio device. Live MIDI
// input reaches the unit through the engine queue.
package portaudio

import (
	"context"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/dudk/split"
	"github.com/dudk/split/host"
	"github.com/dudk/split/log"
	"github.com/dudk/split/signal"
)

type (
	// Adapter plays the unit output using default device. Device callback
	// delivers blocks of max frames.
	Adapter struct {
		format  split.Format
		inputs  int
		engine  *host.Engine
		logger  log.Logger
		ports   []string
		scratch signal.Buffer
		// per-chunk channel headers, reused by every callback.
		in, out [][]float32
	}

	// Option configures the adapter.
	Option func(*Adapter)

	// Device describes an output device.
	Device struct {
		Name              string
		HostAPI           string
		MaxOutputChannels int
		DefaultSampleRate float64
	}
)

// WithInputs opens the default input device, its signal is passed to the
// unit.
func WithInputs(channels int) Option {
	return func(a *Adapter) {
		a.inputs = channels
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New returns the adapter with preallocated buffers for the format.
func New(format split.Format, options ...Option) (*Adapter, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	scratch, err := signal.Planar(signal.Alloc(format.Channels, format.MaxFrames))
	if err != nil {
		return nil, err
	}
	a := &Adapter{
		format:  format,
		scratch: scratch,
		out:     make([][]float32, format.Channels),
	}
	for _, option := range options {
		option(a)
	}
	a.in = make([][]float32, a.inputs)
	a.logger = log.OrDiscard(a.logger)
	return a, nil
}

// Kind implements host.Adapter.
func (a *Adapter) Kind() host.Kind {
	return host.PortAudio
}

// Run opens the default stream and processes blocks until context is done
// or the engine is stopped.
func (a *Adapter) Run(ctx context.Context, e *host.Engine) (err error) {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() {
		if terr := portaudio.Terminate(); err == nil && terr != nil {
			err = terr
		}
	}()

	a.bind(e)
	stream, err := portaudio.OpenDefaultStream(
		a.inputs,
		a.format.Channels,
		float64(a.format.SampleRate),
		a.format.MaxFrames,
		a.process,
	)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	select {
	case <-ctx.Done():
	case <-e.Done():
	}
	return stream.Stop()
}

// bind names device channels after the unit outputs.
func (a *Adapter) bind(e *host.Engine) {
	a.engine = e
	meta := e.Meta()
	a.ports = meta.Outputs(a.format.Channels)
	a.logger.Info(fmt.Sprintf("playing %s: %s", meta.Name, strings.Join(a.ports, ", ")))
}

// Ports returns names of the played unit outputs, one per device channel.
func (a *Adapter) Ports() []string {
	return a.ports
}

// process is the device callback. Blocks longer than max frames are split
// into several engine blocks.
func (a *Adapter) process(in, out [][]float32) {
	if len(out) == 0 {
		return
	}
	frames := len(out[0])
	for pos := 0; pos < frames; pos += a.format.MaxFrames {
		end := min(pos+a.format.MaxFrames, frames)
		for c := range a.in {
			if c < len(in) && len(in[c]) >= end {
				a.in[c] = in[c][pos:end]
			} else {
				a.in[c] = nil
			}
		}
		for c := range a.out {
			if c < len(out) {
				a.out[c] = out[c][pos:end]
			} else {
				a.out[c] = nil
			}
		}
		buf := a.scratch.Slice(0, end-pos)
		buf.Zero()
		buf.ReadPlanar32(a.in)
		a.engine.Block(buf)
		buf.WritePlanar32(a.out[:min(len(a.out), len(out))])
	}
}

// Devices returns available output devices.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info.MaxOutputChannels == 0 {
			continue
		}
		d := Device{
			Name:              info.Name,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
		if info.HostApi != nil {
			d.HostAPI = info.HostApi.Name
		}
		devices = append(devices, d)
	}
	return devices, nil
}
