// Package offline renders an event track into an audio file. Blocks are
// driven by the same host.Engine as live adapters, so for the same track
// and block size the unit sees exactly the same sub-blocks.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/host"
	"github.com/dudk/split/signal"
)

// ErrStopped is returned when a failed block stopped the rendering.
var ErrStopped = errors.New("rendering stopped")

// Renderer is a host.Adapter that renders a track as fast as possible.
// It's the only adapter that retries failed blocks: input of the block is
// restored before every attempt. Units that keep state see the retried
// sub-blocks again.
type Renderer struct {
	track   *Track
	sink    Sink
	source  Source
	retries int
	length  int
	tail    int
	blocks  int
	retried int
}

// Option configures the renderer.
type Option func(*Renderer)

// WithSource sets reference audio read into every block.
func WithSource(s Source) Option {
	return func(r *Renderer) {
		r.source = s
	}
}

// WithRetries sets how many times a failed block is processed again.
func WithRetries(n int) Option {
	return func(r *Renderer) {
		r.retries = n
	}
}

// WithLength sets minimal number of rendered frames.
func WithLength(frames int) Option {
	return func(r *Renderer) {
		r.length = frames
	}
}

// WithTail sets number of frames rendered after the last event.
func WithTail(frames int) Option {
	return func(r *Renderer) {
		r.tail = frames
	}
}

// New returns a renderer of the track into the sink. Sink and source are
// owned by the caller.
func New(track *Track, sink Sink, options ...Option) *Renderer {
	if track == nil {
		track = &Track{}
	}
	r := &Renderer{
		track: track,
		sink:  sink,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Kind implements host.Adapter.
func (r *Renderer) Kind() host.Kind {
	return host.Offline
}

// Blocks returns number of rendered blocks.
func (r *Renderer) Blocks() int {
	return r.blocks
}

// Retried returns number of block retries.
func (r *Renderer) Retried() int {
	return r.retried
}

// Run renders blocks of max frames until the track, the reference audio
// and the requested length are over.
func (r *Renderer) Run(ctx context.Context, e *host.Engine) error {
	format := e.Format()
	if r.source != nil && r.source.SampleRate() != format.SampleRate {
		return &split.ConfigError{
			Format: format,
			Err:    fmt.Errorf("%w: source is %d Hz", split.ErrUnsupportedSampleRate, r.source.SampleRate()),
		}
	}
	full, err := signal.Planar(signal.Alloc(format.Channels, format.MaxFrames))
	if err != nil {
		return err
	}
	var backup signal.Buffer
	if r.retries > 0 {
		if backup, err = signal.Planar(signal.Alloc(format.Channels, format.MaxFrames)); err != nil {
			return err
		}
	}

	length := max(r.track.Frames()+r.tail, r.length)
	sourceDone := r.source == nil
	events := make([]event.Event, 0, r.track.Len())
	for pos := 0; pos < length || !sourceDone; {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := format.MaxFrames
		if sourceDone && length-pos < n {
			n = length - pos
		}
		buf := full.Slice(0, n)
		buf.Zero()
		if !sourceDone {
			read, err := r.source.Read(buf)
			switch {
			case errors.Is(err, io.EOF):
				sourceDone = true
				if pos+read >= length {
					n = read
					buf = buf.Slice(0, n)
				}
			case err != nil:
				return fmt.Errorf("reading source: %w", err)
			}
			if n == 0 {
				break
			}
		}

		events = r.track.Block(pos, n, events[:0])
		if r.process(e, buf, backup, events) == host.Stop {
			return fmt.Errorf("block at frame %d: %w", pos, ErrStopped)
		}
		if err := r.sink.Write(buf); err != nil {
			return fmt.Errorf("writing block at frame %d: %w", pos, err)
		}
		r.blocks++
		pos += n
	}
	return nil
}

// process runs the block and retries it on processing errors.
func (r *Renderer) process(e *host.Engine, buf, backup signal.Buffer, events []event.Event) host.Decision {
	if r.retries == 0 {
		return e.Block(buf, events...)
	}
	buf.CopyTo(backup)
	d, retried := e.Retry(buf, events, r.retries, func() {
		backup.Slice(0, buf.Len()).CopyTo(buf)
	})
	r.retried += retried
	return d
}
