package host

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/metric"
	"github.com/dudk/split/signal"
)

const (
	defaultStreamCapacity = 256
	defaultErrorsCapacity = 16
	defaultStopTimeout    = time.Second
)

var (
	// ErrBlockTooLarge is returned when the host delivers more frames than
	// the unit was initialized with.
	ErrBlockTooLarge = errors.New("block exceeds max frames")
	// ErrStopTimeout is returned when in-flight block didn't finish in time.
	ErrStopTimeout = errors.New("timeout waiting for in-flight block")
)

// Engine is the per-block glue between an adapter and a unit. It owns the
// unit for the whole session and must be driven by one goroutine at a
// time: blocks are processed one after another, never concurrently.
type Engine struct {
	unit      split.Unit
	meta      split.Meta
	format    split.Format
	scheduler *split.Scheduler
	stream    *event.Stream
	queue     *event.Queue
	policy    Policy
	meter     *metric.Meter
	observer  split.Observer
	tap       Tap
	clock     func() time.Time
	errc      chan error

	capacity   int
	dropped    uint64
	blockStart time.Time

	blocks   atomic.Uint64
	stopping atomic.Bool
	inFlight atomic.Int32
	lost     atomic.Uint64
	done     chan struct{}
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// Tap receives the output of every block after the decision is applied.
// It's called on the audio thread and must not block.
type Tap interface {
	Write(buf signal.Buffer)
}

// WithQueue sets the live event queue drained before every block.
func WithQueue(q *event.Queue) EngineOption {
	return func(e *Engine) {
		e.queue = q
	}
}

// WithPolicy sets the processing error policy.
func WithPolicy(p Policy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMeter sets the meter.
func WithMeter(m *metric.Meter) EngineOption {
	return func(e *Engine) {
		e.meter = m
	}
}

// WithObserver sets the scheduler observer.
func WithObserver(o split.Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithTap sets the output tap.
func WithTap(t Tap) EngineOption {
	return func(e *Engine) {
		e.tap = t
	}
}

// WithStreamCapacity sets the max number of events per block.
func WithStreamCapacity(n int) EngineOption {
	return func(e *Engine) {
		e.capacity = n
	}
}

// WithClock sets the clock used to place queued events.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine validates the format, checks it against ports declared by the
// unit, initializes the unit and preallocates everything needed to process
// blocks. Returned error is *split.ConfigError.
func NewEngine(unit split.Unit, format split.Format, options ...EngineOption) (*Engine, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	meta := split.Describe(unit)
	if err := meta.Check(format); err != nil {
		return nil, err
	}
	e := &Engine{
		unit:     unit,
		meta:     meta,
		format:   format,
		policy:   ContinueOnError,
		clock:    time.Now,
		capacity: defaultStreamCapacity,
		errc:     make(chan error, defaultErrorsCapacity),
		done:     make(chan struct{}),
	}
	for _, option := range options {
		option(e)
	}
	if err := unit.Init(format); err != nil {
		var ce *split.ConfigError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &split.ConfigError{Format: format, Err: err}
	}
	e.stream = event.NewStream(e.capacity)
	e.scheduler = split.New(
		split.WithObserver(e.observer),
		split.WithMeter(e.meter),
	)
	return e, nil
}

// Format returns the session format.
func (e *Engine) Format() split.Format {
	return e.format
}

// Meta returns the meta of the unit.
func (e *Engine) Meta() split.Meta {
	return e.meta
}

// Queue returns the live event queue. It's nil if engine has no queue.
func (e *Engine) Queue() *event.Queue {
	return e.queue
}

// Blocks returns number of processed blocks.
func (e *Engine) Blocks() uint64 {
	return e.blocks.Load()
}

// Errors returns the channel of block errors. Errors that don't fit into
// the channel are counted as lost.
func (e *Engine) Errors() <-chan error {
	return e.errc
}

// Lost returns number of errors that were not reported.
func (e *Engine) Lost() uint64 {
	return e.lost.Load()
}

// Done is closed when the engine is stopped.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Stopped returns true if engine doesn't process blocks anymore.
func (e *Engine) Stopped() bool {
	return e.stopping.Load()
}

// Block processes one host block and returns the decision for the host.
// Host events must have offsets relative to the block start, events out
// of range are rejected and never reach the unit. When decision is Mute
// or Stop the buffer is silenced.
func (e *Engine) Block(buf signal.Buffer, events ...event.Event) Decision {
	d, _ := e.Retry(buf, events, 0, nil)
	return d
}

// Retry is Block for adapters that can process a failed block again. When
// the unit returns a processing error, restore is called to bring back the
// block input and the block is processed again, at most retries times.
// Retry returns the decision and the number of retries. Retried attempts
// are the same block: they are counted and reported once.
func (e *Engine) Retry(buf signal.Buffer, events []event.Event, retries int, restore func()) (Decision, int) {
	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	if e.stopping.Load() {
		buf.Zero()
		return Stop, 0
	}

	block := e.blocks.Add(1) - 1
	start := e.clock()
	err := e.fill(buf.Len(), events)
	n := 0
	if err == nil {
		err = e.scheduler.Schedule(buf, e.stream, e.unit)
		for ; n < retries && restore != nil && isProcessingError(err); n++ {
			restore()
			err = e.scheduler.Schedule(buf, e.stream, e.unit)
		}
		e.meter.Block(buf.Len(), e.clock().Sub(start))
		e.blockStart = start
	}
	return e.decide(block, buf, err), n
}

// fill builds the stream of the block from host events and the queue.
// Retried attempts reuse the stream.
func (e *Engine) fill(n int, events []event.Event) error {
	if n > e.format.MaxFrames {
		return fmt.Errorf("%d frames: %w", n, ErrBlockTooLarge)
	}
	e.stream.Reset(n)
	rejected := 0
	for i := range events {
		if !e.stream.InRange(events[i].Offset()) || e.stream.Len() == e.stream.Cap() {
			rejected++
			continue
		}
		_ = e.stream.Push(events[i])
	}
	if e.queue != nil {
		_, r := e.queue.Drain(e.stream, func(at time.Time) int {
			return e.place(at, n)
		})
		rejected += r
		dropped := e.queue.Dropped()
		e.meter.Dropped(dropped - e.dropped)
		e.dropped = dropped
	}
	e.meter.Rejected(rejected)
	return nil
}

func isProcessingError(err error) bool {
	var pe *split.ProcessingError
	return errors.As(err, &pe)
}

// place maps arrival time of a queued event to the block offset. Events
// that arrived while the previous block was played are placed at the same
// relative position of the current block, which adds constant latency of
// one block. Late events are placed at the last frame.
func (e *Engine) place(at time.Time, n int) int {
	if e.blockStart.IsZero() || at.Before(e.blockStart) {
		return 0
	}
	offset := int(signal.FramesIn(e.format.SampleRate, at.Sub(e.blockStart)))
	if offset >= n {
		return n - 1
	}
	return offset
}

// decide maps the block result into a decision, silences the buffer if
// needed and reports the error. Stop decision stops the engine. The
// resulting output is passed to the tap.
func (e *Engine) decide(block uint64, buf signal.Buffer, err error) Decision {
	d := Continue
	if err != nil {
		d = e.policy.Decide(err)
		if d != Continue {
			buf.Zero()
		}
		e.report(&BlockError{Block: block, Decision: d, Err: err})
		if d == Stop {
			e.stop()
		}
	}
	if e.tap != nil {
		e.tap.Write(buf)
	}
	return d
}

// report sends the error without blocking.
func (e *Engine) report(err error) {
	if e.stopping.Load() {
		e.lost.Add(1)
		return
	}
	select {
	case e.errc <- err:
	default:
		e.lost.Add(1)
	}
}

func (e *Engine) stop() {
	if e.stopping.CompareAndSwap(false, true) {
		close(e.done)
	}
}

// Stop prevents new blocks from being processed and waits for the
// in-flight block to finish, including its tap write.
func (e *Engine) Stop(ctx context.Context) error {
	e.stop()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for e.inFlight.Load() > 0 {
		select {
		case <-ctx.Done():
			return ErrStopTimeout
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops the engine and closes the unit.
func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()
	var errs split.Errors
	if err := e.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.unit.Close(); err != nil {
		errs = append(errs, err)
	}
	return errs.Ret()
}
