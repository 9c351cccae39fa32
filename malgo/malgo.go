// Package malgo runs units on a miniaudio playback device.
package malgo

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"strings"

	ma "github.com/gen2brain/malgo"

	"github.com/dudk/split"
	"github.com/dudk/split/host"
	"github.com/dudk/split/log"
	"github.com/dudk/split/signal"
)

const bytesPerSample = 4

// Adapter plays the unit output on the default playback device. Device
// delivers interleaved 32 bit float frames.
type Adapter struct {
	format  split.Format
	engine  *host.Engine
	logger  log.Logger
	ports   []string
	scratch signal.Buffer
	samples []float32
}

// Option configures the adapter.
type Option func(*Adapter)

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
		samples: make([]float32, format.Channels*format.MaxFrames),
	}
	for _, option := range options {
		option(a)
	}
	a.logger = log.OrDiscard(a.logger)
	return a, nil
}

// Kind implements host.Adapter.
func (a *Adapter) Kind() host.Kind {
	return host.Malgo
}

func backend() []ma.Backend {
	switch runtime.GOOS {
	case "linux":
		return []ma.Backend{ma.BackendAlsa}
	case "windows":
		return []ma.Backend{ma.BackendWasapi}
	case "darwin":
		return []ma.Backend{ma.BackendCoreaudio}
	}
	return nil
}

// Run starts the playback device and processes blocks until context is
// done or the engine is stopped.
func (a *Adapter) Run(ctx context.Context, e *host.Engine) error {
	mctx, err := ma.InitContext(backend(), ma.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	cfg := ma.DefaultDeviceConfig(ma.Playback)
	cfg.Playback.Format = ma.FormatF32
	cfg.Playback.Channels = uint32(a.format.Channels)
	cfg.SampleRate = uint32(a.format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(a.format.MaxFrames)
	cfg.Alsa.NoMMap = 1

	a.bind(e)
	device, err := ma.InitDevice(mctx.Context, cfg, ma.DeviceCallbacks{
		Data: a.process,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	select {
	case <-ctx.Done():
	case <-e.Done():
	}
	return device.Stop()
}

// bind names interleaved device channels after the unit outputs.
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

// process is the device data callback. Frames beyond max frames are
// processed as several engine blocks.
func (a *Adapter) process(out, _ []byte, frameCount uint32) {
	channels := a.format.Channels
	frames := min(int(frameCount), len(out)/(channels*bytesPerSample))
	for pos := 0; pos < frames; pos += a.format.MaxFrames {
		n := min(a.format.MaxFrames, frames-pos)
		buf := a.scratch.Slice(0, n)
		buf.Zero()
		a.engine.Block(buf)
		samples := a.samples[:n*channels]
		buf.WriteInterleaved32(samples)
		dst := out[pos*channels*bytesPerSample:]
		for i, v := range samples {
			binary.LittleEndian.PutUint32(dst[i*bytesPerSample:], math.Float32bits(v))
		}
	}
}

// Devices returns names of playback devices.
func Devices() ([]string, error) {
	mctx, err := ma.InitContext(backend(), ma.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()
	infos, err := mctx.Devices(ma.Playback)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for i := range infos {
		names = append(names, infos[i].Name())
	}
	return names, nil
}
