// Package mock provides mocks for processing units and host adapters and
// allows to execute integration tests.
package mock

import (
	"context"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/host"
	"github.com/dudk/split/signal"
)

// Call is a recorded processor call. Events are copied, so calls can be
// checked after the block is done.
type Call struct {
	Start  int
	Len    int
	Events []event.Event
}

// Unit mocks a split.Unit interface. It's not thread-safe, so it should
// not be checked while a session is running.
type Unit struct {
	counter
	// Value is added to every processed sample.
	Value float64
	// ErrorOnCall is returned by every call.
	ErrorOnCall error
	// FailAt is the 1-based call number that returns ErrorOnCall. Zero
	// means every call.
	FailAt int
	// Discard disables call recording.
	Discard bool
	// Declared is returned by Meta if set.
	Declared *split.Meta
	Hooks

	format split.Format
	calls  []Call
}

// Init implements split.Unit.
func (m *Unit) Init(f split.Format) error {
	m.Initialized = true
	m.format = f
	if m.ErrorOnInit != nil {
		return m.ErrorOnInit
	}
	m.reset()
	return nil
}

// Process implements split.Processor.
func (m *Unit) Process(buf signal.Buffer, events []event.Event) error {
	m.advance(buf.Len(), len(events))
	if m.ErrorOnCall != nil && (m.FailAt == 0 || m.FailAt == m.messages) {
		return m.ErrorOnCall
	}
	if !m.Discard {
		m.calls = append(m.calls, Call{
			Start:  buf.Offset(),
			Len:    buf.Len(),
			Events: append([]event.Event(nil), events...),
		})
	}
	if m.Value != 0 {
		for c := 0; c < buf.NumChannels(); c++ {
			for i := 0; i < buf.Len(); i++ {
				buf.Add(c, i, m.Value)
			}
		}
	}
	return nil
}

// Meta implements split.Describer.
func (m *Unit) Meta() split.Meta {
	if m.Declared != nil {
		return *m.Declared
	}
	return split.Meta{Name: "mock", MIDIInputs: 1}
}

// Close implements split.Unit.
func (m *Unit) Close() error {
	m.Closed = true
	return m.ErrorOnClose
}

// Calls returns recorded calls.
func (m *Unit) Calls() []Call {
	return m.calls
}

// Format returns the format unit was initialized with.
func (m *Unit) Format() split.Format {
	return m.format
}

// Hooks allows to mock unit lifecycle hooks.
type Hooks struct {
	Initialized bool
	Closed      bool

	ErrorOnInit  error
	ErrorOnClose error
}

// Block is a block delivered by Adapter.
type Block struct {
	Frames int
	Events []event.Event
}

// Adapter mocks a host.Adapter. It delivers blocks in order, one engine
// call per block, the way a host callback would.
type Adapter struct {
	Blocks   []Block
	Channels int
	// Decisions are decisions returned by the engine for every block.
	Decisions []host.Decision
	// ErrorOnRun is returned by Run before any block is delivered.
	ErrorOnRun error
}

// Kind implements host.Adapter.
func (m *Adapter) Kind() host.Kind {
	return host.Mock
}

// Run implements host.Adapter.
func (m *Adapter) Run(ctx context.Context, e *host.Engine) error {
	if m.ErrorOnRun != nil {
		return m.ErrorOnRun
	}
	channels := m.Channels
	if channels == 0 {
		channels = 1
	}
	for _, b := range m.Blocks {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		buf, err := signal.Planar(signal.Alloc(channels, b.Frames))
		if err != nil {
			return err
		}
		d := e.Block(buf, b.Events...)
		m.Decisions = append(m.Decisions, d)
		if d == host.Stop {
			return nil
		}
	}
	return nil
}

// counter counts calls, frames and events.
type counter struct {
	messages int
	samples  int
	events   int
}

// reset resets counter's metrics.
func (c *counter) reset() {
	c.messages, c.samples, c.events = 0, 0, 0
}

// advance counter's metrics.
func (c *counter) advance(size, events int) {
	c.messages++
	c.samples += size
	c.events += events
}

// Count returns calls, frames and events metrics.
func (c *counter) Count() (int, int, int) {
	return c.messages, c.samples, c.events
}
