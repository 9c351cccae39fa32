package event

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrOutOfRange is matched by every OutOfRangeError.
	ErrOutOfRange = errors.New("event offset out of range")
	// ErrStreamFull is returned when a stream reached its capacity.
	ErrStreamFull = errors.New("event stream is full")
)

// OutOfRangeError is returned when an event offset is outside of the
// block it is pushed to.
type OutOfRangeError struct {
	Offset int
	Frames int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("event offset %d out of range [0, %d)", e.Offset, e.Frames)
}

// Is allows to match the error with ErrOutOfRange.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Stream is an ordered collection of events of one block. Its storage is
// allocated once with NewStream and reused for every block after Reset,
// so pushing events never allocates.
//
// Events are sorted ascending by offset; events with equal offsets keep
// their arrival order. Pushing events in non-decreasing offset order
// keeps the stream sorted, otherwise it is sorted once before the first
// read.
type Stream struct {
	events []Event
	frames int
	seq    uint64
	sorted bool
}

// NewStream returns a stream that can hold up to capacity events.
func NewStream(capacity int) *Stream {
	return &Stream{
		events: make([]Event, 0, capacity),
		sorted: true,
	}
}

// Reset clears the stream and starts a new block of frames.
func (s *Stream) Reset(frames int) {
	s.events = s.events[:0]
	s.frames = frames
	s.seq = 0
	s.sorted = true
}

// Frames returns the number of frames of the current block.
func (s *Stream) Frames() int {
	return s.frames
}

// Len returns the number of events in the stream.
func (s *Stream) Len() int {
	return len(s.events)
}

// Cap returns the capacity of the stream.
func (s *Stream) Cap() int {
	return cap(s.events)
}

// InRange returns true if an event with such offset can be pushed.
func (s *Stream) InRange(offset int) bool {
	return offset >= 0 && offset < s.frames
}

// Push adds the event to the stream and assigns its arrival index. The
// stream is left unmodified if an error is returned.
func (s *Stream) Push(e Event) error {
	if !s.InRange(e.offset) {
		return &OutOfRangeError{Offset: e.offset, Frames: s.frames}
	}
	if len(s.events) == cap(s.events) {
		return ErrStreamFull
	}
	if n := len(s.events); n > 0 && e.offset < s.events[n-1].offset {
		s.sorted = false
	}
	e.seq = s.seq
	s.seq++
	s.events = append(s.events, e)
	return nil
}

// Sort orders events by offset and arrival. It's a no-op if events were
// pushed in order.
func (s *Stream) Sort() {
	if s.sorted {
		return
	}
	slices.SortFunc(s.events, compare)
	s.sorted = true
}

func compare(a, b Event) int {
	if c := cmp.Compare(a.offset, b.offset); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// Events returns sorted events of the stream. The slice must not be
// modified or retained after the block.
func (s *Stream) Events() []Event {
	s.Sort()
	return s.events[:len(s.events):len(s.events)]
}

// Collision decides what Insert does when the new event has the same
// offset as an event already in the stream.
type Collision int

// Collision handling.
const (
	// InsertNewAfterOld keeps arrival order.
	InsertNewAfterOld Collision = iota
	// InsertNewBeforeOld puts the new event ahead of events at the offset.
	InsertNewBeforeOld
	// IgnoreNew drops the new event.
	IgnoreNew
	// RemoveOld replaces the first event at the offset with the new one.
	RemoveOld
)

var collisionNames = [...]string{
	InsertNewAfterOld:  "after",
	InsertNewBeforeOld: "before",
	IgnoreNew:          "ignore",
	RemoveOld:          "replace",
}

func (c Collision) String() string {
	if c >= 0 && int(c) < len(collisionNames) {
		return collisionNames[c]
	}
	return "unknown"
}

// Insert puts the event into the sorted stream. When the stream is full,
// the earliest event is evicted to make room, unless the new event is not
// later than it. Insert returns the event that didn't end up in the
// stream: the evicted, ignored or replaced one. Arrival indices are
// renumbered to match the order of events.
func (s *Stream) Insert(e Event, c Collision) (Event, bool) {
	if !s.InRange(e.offset) {
		return e, true
	}
	s.Sort()
	var (
		removed Event
		evicted bool
	)
	if len(s.events) == cap(s.events) {
		if len(s.events) == 0 || e.offset <= s.events[0].offset {
			return e, true
		}
		removed, evicted = s.events[0], true
		n := copy(s.events, s.events[1:])
		s.events = s.events[:n]
	}

	i := 0
scan:
	for ; i < len(s.events); i++ {
		switch {
		case s.events[i].offset < e.offset:
			continue
		case s.events[i].offset > e.offset:
			break scan
		}
		switch c {
		case IgnoreNew:
			return e, true
		case RemoveOld:
			old := s.events[i]
			e.seq = old.seq
			s.events[i] = e
			return old, true
		case InsertNewBeforeOld:
			break scan
		}
	}
	s.events = slices.Insert(s.events, i, e)
	for j := range s.events {
		s.events[j].seq = uint64(j)
	}
	s.seq = uint64(len(s.events))
	return removed, evicted
}

// LastBefore returns the last event before, but not on, the offset.
func (s *Stream) LastBefore(offset int) (Event, bool) {
	s.Sort()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].offset < offset {
			return s.events[i], true
		}
	}
	return Event{}, false
}

// Cursor returns a forward cursor over sorted events.
func (s *Stream) Cursor() Cursor {
	return Cursor{events: s.Events()}
}

// ForgetBefore removes all events before, but not on, the offset.
func (s *Stream) ForgetBefore(offset int) {
	s.Sort()
	i := 0
	for i < len(s.events) && s.events[i].offset < offset {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(s.events, s.events[i:])
	s.events = s.events[:n]
}

// Shift moves the stream forward in time by frames: offsets are decreased
// by frames and events that would end up before the block start are
// removed. Block length is kept, so the stream can carry events ahead of
// time across blocks.
func (s *Stream) Shift(frames int) {
	s.ForgetBefore(frames)
	for i := range s.events {
		s.events[i].offset -= frames
	}
}

// Cursor reads batches of events sharing the same offset. Zero value is
// an exhausted cursor.
type Cursor struct {
	events []Event
	pos    int
}

// Peek returns the offset of the next batch.
func (c *Cursor) Peek() (int, bool) {
	if c.pos >= len(c.events) {
		return 0, false
	}
	return c.events[c.pos].offset, true
}

// Next returns the offset and all events of the next batch. Returned
// batch is a view into the stream and is only valid within the block.
func (c *Cursor) Next() (int, []Event, bool) {
	if c.pos >= len(c.events) {
		return 0, nil, false
	}
	start := c.pos
	offset := c.events[start].offset
	end := start + 1
	for end < len(c.events) && c.events[end].offset == offset {
		end++
	}
	c.pos = end
	return offset, c.events[start:end:end], true
}
