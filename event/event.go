// Package event defines timestamped MIDI-like events and the per-block
// event stream consumed by the scheduler.
//
// Events carry a frame offset relative to the start of the block they
// belong to. A Stream keeps events of one block sorted by offset, with
// ties kept in arrival order, and exposes them through a single forward
// Cursor. A Queue is the only way to hand events from a producer goroutine
// to the audio goroutine.
package event

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Kind is the kind of the event payload.
type Kind uint8

// Event kinds.
const (
	Other Kind = iota
	NoteOn
	NoteOff
	ControlChange
	ProgramChange
	PitchBend
	ChannelPressure
	PolyPressure
	SysEx
)

var kindNames = [...]string{
	Other:           "other",
	NoteOn:          "note on",
	NoteOff:         "note off",
	ControlChange:   "control change",
	ProgramChange:   "program change",
	PitchBend:       "pitch bend",
	ChannelPressure: "channel pressure",
	PolyPressure:    "poly pressure",
	SysEx:           "sysex",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ErrInvalidMessage is returned when raw data is not a valid message.
var ErrInvalidMessage = errors.New("raw midi message must have length 1, 2 or 3")

// Event is a discrete message due at a frame offset of a block. Events are
// values and are never modified once pushed into a stream.
type Event struct {
	offset int
	seq    uint64
	data   [3]byte
	n      uint8
	sysex  []byte
}

// New returns an event from raw message bytes. Messages of 1 to 3 bytes
// are copied into the event. System exclusive messages are borrowed: the
// caller must keep data unchanged while the event is in use.
func New(offset int, data []byte) (Event, error) {
	if len(data) > 0 && data[0] == 0xF0 {
		return Event{offset: offset, sysex: data}, nil
	}
	if len(data) == 0 || len(data) > 3 {
		return Event{}, fmt.Errorf("%d bytes: %w", len(data), ErrInvalidMessage)
	}
	var msg [3]byte
	copy(msg[:], data)
	return Short(offset, msg, len(data)), nil
}

// Short returns an event of a short message with n valid bytes. N is
// clamped to [1, 3].
func Short(offset int, msg [3]byte, n int) Event {
	switch {
	case n < 1:
		n = 1
	case n > 3:
		n = 3
	}
	return Event{offset: offset, data: msg, n: uint8(n)}
}

// FromMIDI returns an event carrying the gomidi message.
func FromMIDI(offset int, msg midi.Message) (Event, error) {
	return New(offset, msg.Bytes())
}

// Note returns a note on event.
func Note(offset int, channel, key, velocity uint8) Event {
	return fromShort(offset, midi.NoteOn(channel, key, velocity))
}

// NoteRelease returns a note off event.
func NoteRelease(offset int, channel, key uint8) Event {
	return fromShort(offset, midi.NoteOff(channel, key))
}

// Control returns a control change event.
func Control(offset int, channel, controller, value uint8) Event {
	return fromShort(offset, midi.ControlChange(channel, controller, value))
}

// Program returns a program change event.
func Program(offset int, channel, program uint8) Event {
	return fromShort(offset, midi.ProgramChange(channel, program))
}

// Bend returns a pitch bend event. Value is in range [-8192, 8191].
func Bend(offset int, channel uint8, value int16) Event {
	return fromShort(offset, midi.Pitchbend(channel, value))
}

func fromShort(offset int, msg midi.Message) Event {
	var data [3]byte
	n := copy(data[:], msg)
	return Short(offset, data, n)
}

// Offset returns the frame offset relative to the start of the block.
func (e Event) Offset() int {
	return e.offset
}

// Seq returns the arrival index of the event in its stream.
func (e Event) Seq() uint64 {
	return e.seq
}

// At returns a copy of the event due at another offset.
func (e Event) At(offset int) Event {
	e.offset = offset
	return e
}

// Kind classifies the event. Note on with zero velocity is a note off.
func (e Event) Kind() Kind {
	if e.sysex != nil {
		return SysEx
	}
	msg := e.short()
	switch msg.Type() {
	case midi.NoteOnMsg, midi.NoteOffMsg:
		var channel, key uint8
		if msg.GetNoteEnd(&channel, &key) {
			return NoteOff
		}
		return NoteOn
	case midi.ControlChangeMsg:
		return ControlChange
	case midi.ProgramChangeMsg:
		return ProgramChange
	case midi.PitchBendMsg:
		return PitchBend
	case midi.AfterTouchMsg:
		return ChannelPressure
	case midi.PolyAfterTouchMsg:
		return PolyPressure
	}
	return Other
}

// short returns the short message without copying it.
func (e *Event) short() midi.Message {
	return midi.Message(e.data[:e.n])
}

// Channel returns the channel of channel messages.
func (e Event) Channel() uint8 {
	var channel uint8
	e.short().GetChannel(&channel)
	return channel
}

// Key returns the key of note and poly pressure messages.
func (e Event) Key() uint8 {
	return e.data[1]
}

// Velocity returns the velocity of note messages.
func (e Event) Velocity() uint8 {
	return e.data[2]
}

// Controller returns the controller number of control change messages.
func (e Event) Controller() uint8 {
	return e.data[1]
}

// Value returns the value of control change, program change and channel
// pressure messages.
func (e Event) Value() uint8 {
	switch e.Kind() {
	case ProgramChange, ChannelPressure:
		return e.data[1]
	}
	return e.data[2]
}

// BendValue returns the relative pitch bend value in range [-8192, 8191].
func (e Event) BendValue() int16 {
	var (
		channel  uint8
		relative int16
		absolute uint16
	)
	e.short().GetPitchBend(&channel, &relative, &absolute)
	return relative
}

// SysExData returns the borrowed system exclusive payload.
func (e Event) SysExData() []byte {
	return e.sysex
}

// Message returns the payload as a gomidi message. The message is a copy
// and allocates, so units should prefer the accessors on the audio path.
func (e Event) Message() midi.Message {
	if e.sysex != nil {
		return midi.Message(append([]byte(nil), e.sysex...))
	}
	return midi.Message(append([]byte(nil), e.short()...))
}

func (e Event) String() string {
	return fmt.Sprintf("%d:%d %v", e.offset, e.seq, e.Message())
}
