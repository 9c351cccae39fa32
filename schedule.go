package split

import (
	"errors"
	"fmt"

	"github.com/dudk/split/event"
	"github.com/dudk/split/signal"
)

type (
	// SubBlock describes one processor call: frames [Start, End) of the
	// block and the events due at Start. Events is a view into the stream.
	SubBlock struct {
		Start  int
		End    int
		Events []event.Event
	}

	// Observer is notified about every sub-block before it's processed.
	// It's called on the processing goroutine and must not block.
	Observer interface {
		Observe(SubBlock)
	}

	// ObserverFunc allows to use ordinary functions as observers.
	ObserverFunc func(SubBlock)

	// Meter counts scheduling outcomes. It's called on the processing
	// goroutine and must not block.
	Meter interface {
		Scheduled(subBlocks, events int)
		Failed()
	}

	// Scheduler splits blocks at event offsets and calls the processor
	// once per sub-block. Zero value is ready to use. Scheduler has no
	// per-block state and never allocates on success.
	Scheduler struct {
		observer Observer
		meter    Meter
	}
)

// Observe calls f(sb).
func (f ObserverFunc) Observe(sb SubBlock) {
	f(sb)
}

// Len returns number of frames in the sub-block.
func (sb SubBlock) Len() int {
	return sb.End - sb.Start
}

var defaultScheduler Scheduler

// New returns a scheduler configured with options.
func New(options ...Option) *Scheduler {
	s := Scheduler{}
	for _, option := range options {
		option(&s)
	}
	return &s
}

// Schedule processes one block with the default scheduler.
func Schedule(buf signal.Buffer, stream *event.Stream, p Processor) error {
	return defaultScheduler.Schedule(buf, stream, p)
}

// Schedule processes one block. Buffer must have as many frames as the
// stream. The block [0, N) is partitioned at every distinct event offset
// and the processor is called once per resulting sub-block, in order.
// Empty stream results in a single call for the whole block. Zero-frame
// block results in no calls.
//
// The first processor error aborts the block: remaining sub-blocks are not
// processed and output of processed ones is left as-is. The error is
// returned as *ProcessingError.
func (s *Scheduler) Schedule(buf signal.Buffer, stream *event.Stream, p Processor) error {
	n := buf.Len()
	if n != stream.Frames() {
		return fmt.Errorf("buffer: %d stream: %d: %w", n, stream.Frames(), ErrFrameMismatch)
	}

	cursor := stream.Cursor()
	var (
		subBlocks int
		events    int
	)
	for start := 0; start < n; {
		var batch []event.Event
		if offset, ok := cursor.Peek(); ok && offset == start {
			_, batch, _ = cursor.Next()
		}
		end := n
		if offset, ok := cursor.Peek(); ok {
			end = offset
		}

		sb := SubBlock{Start: start, End: end, Events: batch}
		if s.observer != nil {
			s.observer.Observe(sb)
		}
		subBlocks++
		events += len(batch)
		if err := p.Process(buf.Slice(start, end), batch); err != nil {
			if s.meter != nil {
				s.meter.Failed()
			}
			return processingError(sb, err)
		}
		start = end
	}
	if s.meter != nil {
		s.meter.Scheduled(subBlocks, events)
	}
	return nil
}

// processingError wraps processor error unless it's already a
// *ProcessingError.
func processingError(sb SubBlock, err error) error {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return &ProcessingError{
		Start: sb.Start,
		End:   sb.End,
		Err:   err,
	}
}
