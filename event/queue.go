package event

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrQueueFull is returned to the producer when the queue has no free slot.
var ErrQueueFull = errors.New("event queue is full")

// Timed is an event stamped with its arrival time.
type Timed struct {
	Event
	Arrived time.Time
}

// Queue hands events from a single producer goroutine to the audio
// goroutine. Neither side ever blocks: the producer gets ErrQueueFull when
// the queue is full and the consumer drains whatever is available once per
// block.
type Queue struct {
	events  chan Timed
	dropped atomic.Uint64
}

// NewQueue returns a queue with capacity slots.
func NewQueue(capacity int) *Queue {
	return &Queue{
		events: make(chan Timed, capacity),
	}
}

// TryPush offers the event stamped with current time.
func (q *Queue) TryPush(e Event) error {
	return q.TryPushAt(e, time.Now())
}

// TryPushAt offers the event stamped with provided time. Overflow is
// counted and reported, the event is dropped.
func (q *Queue) TryPushAt(e Event, at time.Time) error {
	select {
	case q.events <- Timed{Event: e, Arrived: at}:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns number of events rejected because of overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns number of queued events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Cap returns the capacity of the queue.
func (q *Queue) Cap() int {
	return cap(q.events)
}

// Drain moves queued events into the stream. Place maps arrival time of
// every event to its offset in the current block. At most Cap events are
// received, so a fast producer cannot keep the consumer busy. Returns
// number of pushed and rejected events.
func (q *Queue) Drain(s *Stream, place func(time.Time) int) (pushed, rejected int) {
	for i := 0; i < cap(q.events); i++ {
		select {
		case t := <-q.events:
			offset := place(t.Arrived)
			if !s.InRange(offset) || s.Len() == s.Cap() {
				rejected++
				continue
			}
			if err := s.Push(t.At(offset)); err != nil {
				rejected++
				continue
			}
			pushed++
		default:
			return
		}
	}
	return
}
