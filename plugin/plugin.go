// Package plugin adapts the callback shape of VST-style plugin hosts.
//
// A plugin host first delivers events for the next block with
// ProcessEvents, each event carrying its delta frames relative to the
// block start. Then it calls ProcessReplacing with host-owned input and
// output buffers. Events delivered ahead of time, with delta frames beyond
// the next block, are carried over to later blocks.
package plugin

import (
	"context"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/host"
	"github.com/dudk/split/signal"
)

// Status is returned to the plugin host.
type Status int32

const (
	// StatusOK means output is valid.
	StatusOK Status = iota
	// StatusMuted means the block failed and output is silenced.
	StatusMuted
	// StatusStopped means the unit is stopped and output is silenced.
	StatusStopped
	// StatusNotReady means no engine is bound to the adapter.
	StatusNotReady
	// StatusInvalid means host passed unsupported arguments.
	StatusInvalid
)

// Event is a MIDI event as delivered by the plugin host.
type Event struct {
	DeltaFrames int32
	Data        [4]byte
	// SysEx is set for system exclusive messages.
	SysEx []byte
}

// horizonBlocks is how many blocks ahead events can be delivered.
const horizonBlocks = 4

// Adapter is a host.Adapter for plugin hosts. Host callbacks must not be
// called concurrently, as hosts do.
type Adapter struct {
	engine    atomic.Pointer[host.Engine]
	format    split.Format
	collision event.Collision
	pending   *event.Stream
	events    []event.Event
	scratch   signal.Buffer
	rejected  atomic.Uint64
}

// Option configures the adapter.
type Option func(*Adapter)

// WithCollision sets how events delivered for the same frame as a pending
// event are handled. Default is event.InsertNewAfterOld.
func WithCollision(c event.Collision) Option {
	return func(a *Adapter) {
		a.collision = c
	}
}

// New returns an adapter with preallocated storage for the format. Capacity
// is the max number of pending events. When pending events reach capacity,
// the earliest one is dropped to make room for a later event.
func New(format split.Format, capacity int, options ...Option) (*Adapter, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	scratch, err := signal.Planar(signal.Alloc(format.Channels, format.MaxFrames))
	if err != nil {
		return nil, err
	}
	pending := event.NewStream(capacity)
	pending.Reset(horizonBlocks * format.MaxFrames)
	a := &Adapter{
		format:  format,
		pending: pending,
		events:  make([]event.Event, 0, capacity),
		scratch: scratch,
	}
	for _, option := range options {
		option(a)
	}
	return a, nil
}

// Kind implements host.Adapter.
func (a *Adapter) Kind() host.Kind {
	return host.Plugin
}

// Run binds the engine to host callbacks until the context is done or the
// engine is stopped.
func (a *Adapter) Run(ctx context.Context, e *host.Engine) error {
	a.Bind(e)
	defer a.Bind(nil)
	select {
	case <-ctx.Done():
	case <-e.Done():
	}
	return nil
}

// Bind binds the engine to host callbacks. Nil unbinds it.
func (a *Adapter) Bind(e *host.Engine) {
	a.engine.Store(e)
}

// Rejected returns number of events rejected, ignored or dropped by the
// adapter.
func (a *Adapter) Rejected() uint64 {
	return a.rejected.Load()
}

// ProcessEvents accepts events for the next block.
func (a *Adapter) ProcessEvents(events []Event) Status {
	for i := range events {
		e, ok := convert(&events[i])
		if !ok {
			a.rejected.Add(1)
			continue
		}
		if _, removed := a.pending.Insert(e, a.collision); removed {
			a.rejected.Add(1)
		}
	}
	return StatusOK
}

// convert returns the event for supported messages. System exclusive
// payload is borrowed from the host. Running status is not supported.
func convert(he *Event) (event.Event, bool) {
	offset := int(he.DeltaFrames)
	if he.SysEx != nil {
		e, err := event.New(offset, he.SysEx)
		return e, err == nil
	}
	if he.Data[0] < 0x80 {
		return event.Event{}, false
	}
	data := [3]byte{he.Data[0], he.Data[1], he.Data[2]}
	n := messageLen(midi.Message(data[:]))
	if n == 0 {
		return event.Event{}, false
	}
	return event.Short(offset, data, n), true
}

// messageLen returns length of the short message by its type.
func messageLen(msg midi.Message) int {
	switch msg.Type() {
	case midi.UnknownMsg, midi.SysExMsg:
		return 0
	case midi.ProgramChangeMsg, midi.AfterTouchMsg, midi.MTCMsg, midi.SongSelectMsg:
		return 2
	case midi.NoteOnMsg, midi.NoteOffMsg, midi.ControlChangeMsg, midi.PitchBendMsg,
		midi.PolyAfterTouchMsg, midi.SPPMsg:
		return 3
	}
	return 1
}

// ProcessReplacing renders the block into host outputs. Inputs are copied
// into the scratch buffer first, so hosts can pass the same slices as
// inputs and outputs.
func (a *Adapter) ProcessReplacing(inputs, outputs [][]float32, frames int) Status {
	e := a.engine.Load()
	buf, status := a.prepare(e, frames)
	if status != StatusOK {
		silence32(outputs, frames)
		return status
	}
	buf.Zero()
	buf.ReadPlanar32(inputs)
	status = a.process(e, buf)
	buf.WritePlanar32(outputs)
	return status
}

// ProcessDoubleReplacing is ProcessReplacing for double precision hosts.
func (a *Adapter) ProcessDoubleReplacing(inputs, outputs [][]float64, frames int) Status {
	e := a.engine.Load()
	buf, status := a.prepare(e, frames)
	if status != StatusOK {
		silence64(outputs, frames)
		return status
	}
	buf.Zero()
	if in, err := signal.Planar(inputs); err == nil && in.Len() >= frames {
		in.Slice(0, frames).CopyTo(buf)
	}
	status = a.process(e, buf)
	if out, err := signal.Planar(outputs); err == nil && out.Len() >= frames {
		buf.CopyTo(out.Slice(0, frames))
	}
	return status
}

// prepare checks the callback arguments. The engine is loaded once per
// callback, so unbinding it concurrently takes effect on the next one.
func (a *Adapter) prepare(e *host.Engine, frames int) (signal.Buffer, Status) {
	if e == nil {
		return signal.Buffer{}, StatusNotReady
	}
	if frames < 0 || frames > a.scratch.Len() {
		return signal.Buffer{}, StatusInvalid
	}
	return a.scratch.Slice(0, frames), StatusOK
}

// process moves due events out of pending stream and runs the block.
func (a *Adapter) process(e *host.Engine, buf signal.Buffer) Status {
	frames := buf.Len()
	a.events = a.events[:0]
	for _, ev := range a.pending.Events() {
		if ev.Offset() >= frames {
			break
		}
		a.events = append(a.events, ev)
	}
	a.pending.Shift(frames)

	switch e.Block(buf, a.events...) {
	case host.Continue:
		return StatusOK
	case host.Mute:
		return StatusMuted
	}
	return StatusStopped
}

func silence32(outputs [][]float32, frames int) {
	for c := range outputs {
		for i := 0; i < frames && i < len(outputs[c]); i++ {
			outputs[c][i] = 0
		}
	}
}

func silence64(outputs [][]float64, frames int) {
	for c := range outputs {
		for i := 0; i < frames && i < len(outputs[c]); i++ {
			outputs[c][i] = 0
		}
	}
}
