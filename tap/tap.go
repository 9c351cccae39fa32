// Package tap records live output without blocking the audio thread.
// Blocks are copied into a ring buffer by the engine and written to the
// sink by a session producer.
package tap

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/dudk/split"
	"github.com/dudk/split/signal"
)

const (
	bytesPerSample = 4
	defaultPeriod  = 50 * time.Millisecond
)

// Sink receives recorded blocks.
type Sink interface {
	Write(buf signal.Buffer) error
}

// Recorder is a host.Tap. Blocks that don't fit into the ring buffer are
// dropped as a whole.
type Recorder struct {
	format     split.Format
	sink       Sink
	rb         *ringbuffer.RingBuffer
	period     time.Duration
	frameBytes int

	// audio thread scratch.
	encoded []byte
	// drain scratch.
	chunk   []byte
	decoded signal.Buffer

	dropped  atomic.Uint64
	recorded atomic.Uint64
}

// Option configures the recorder.
type Option func(*Recorder)

// WithPeriod sets how often the ring buffer is drained.
func WithPeriod(d time.Duration) Option {
	return func(r *Recorder) {
		r.period = d
	}
}

// New returns a recorder that can hold the duration of output between
// drains.
func New(format split.Format, sink Sink, capacity time.Duration, options ...Option) (*Recorder, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	decoded, err := signal.Planar(signal.Alloc(format.Channels, format.MaxFrames))
	if err != nil {
		return nil, err
	}
	frameBytes := format.Channels * bytesPerSample
	frames := max(int(signal.FramesIn(format.SampleRate, capacity)), format.MaxFrames)
	r := &Recorder{
		format:     format,
		sink:       sink,
		rb:         ringbuffer.New(frames * frameBytes),
		period:     defaultPeriod,
		frameBytes: frameBytes,
		encoded:    make([]byte, format.MaxFrames*frameBytes),
		chunk:      make([]byte, format.MaxFrames*frameBytes),
		decoded:    decoded,
	}
	for _, option := range options {
		option(r)
	}
	return r, nil
}

// Write implements host.Tap.
func (r *Recorder) Write(buf signal.Buffer) {
	n := buf.Len() * r.frameBytes
	if n == 0 {
		return
	}
	if n > len(r.encoded) || r.rb.Free() < n {
		r.dropped.Add(uint64(buf.Len()))
		return
	}
	channels := buf.NumChannels()
	for i := 0; i < buf.Len(); i++ {
		for c := 0; c < r.format.Channels; c++ {
			var v float64
			if c < channels {
				v = buf.At(c, i)
			}
			binary.LittleEndian.PutUint32(r.encoded[(i*r.format.Channels+c)*bytesPerSample:], math.Float32bits(float32(v)))
		}
	}
	if written, err := r.rb.Write(r.encoded[:n]); err != nil || written < n {
		r.dropped.Add(uint64(buf.Len()))
	}
}

// Dropped returns number of frames dropped because the ring buffer was
// full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Recorded returns number of frames written to the sink.
func (r *Recorder) Recorded() uint64 {
	return r.recorded.Load()
}

// Run drains the ring buffer into the sink until the context is done.
// It has the signature of host.Producer.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.Flush()
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				return err
			}
		}
	}
}

// Flush writes everything recorded so far into the sink.
func (r *Recorder) Flush() error {
	for {
		available := r.rb.Length()
		n := min(available-available%r.frameBytes, len(r.chunk))
		if n == 0 {
			return nil
		}
		read, err := r.rb.Read(r.chunk[:n])
		if err != nil {
			return err
		}
		frames := read / r.frameBytes
		buf := r.decoded.Slice(0, frames)
		for i := 0; i < frames; i++ {
			for c := 0; c < r.format.Channels; c++ {
				bits := binary.LittleEndian.Uint32(r.chunk[(i*r.format.Channels+c)*bytesPerSample:])
				buf.Set(c, i, float64(math.Float32frombits(bits)))
			}
		}
		if err := r.sink.Write(buf); err != nil {
			return err
		}
		r.recorded.Add(uint64(frames))
	}
}
