package split

import (
	"fmt"

	"github.com/dudk/split/event"
	"github.com/dudk/split/signal"
)

// Format describes the session every unit is initialized with.
type Format struct {
	SampleRate int
	Channels   int
	// MaxFrames is the largest block the host will deliver.
	MaxFrames int
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d channels, %d frames", f.SampleRate, f.Channels, f.MaxFrames)
}

// Validate checks that format values are usable at all.
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return &ConfigError{Format: f, Err: ErrUnsupportedSampleRate}
	case f.Channels <= 0:
		return &ConfigError{Format: f, Err: ErrUnsupportedChannels}
	case f.MaxFrames <= 0:
		return &ConfigError{Format: f, Err: ErrInvalidBlockSize}
	}
	return nil
}

// Processor renders one sub-block. Buffer is the view of the sub-block and
// events are due at its first frame. Processor must not retain the buffer
// or events after the call returns.
type Processor interface {
	Process(buf signal.Buffer, events []event.Event) error
}

// ProcessorFunc allows to use ordinary functions as processors.
type ProcessorFunc func(buf signal.Buffer, events []event.Event) error

// Process calls f(buf, events).
func (f ProcessorFunc) Process(buf signal.Buffer, events []event.Event) error {
	return f(buf, events)
}

// Unit is the processing unit hosted by adapters. Its state is owned by a
// single processing goroutine for the whole session.
type Unit interface {
	Processor
	// Init is called once before the first block.
	Init(Format) error
	// Close releases retained resources.
	Close() error
}

// AsUnit returns a unit with no-op Init and Close.
func AsUnit(p Processor) Unit {
	if u, ok := p.(Unit); ok {
		return u
	}
	return unit{Processor: p}
}

type unit struct {
	Processor
}

func (unit) Init(Format) error { return nil }

func (unit) Close() error { return nil }
