// Package midiin feeds live MIDI input into the engine queue. It runs as a
// session producer, outside of the audio thread.
package midiin

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/dudk/split/event"
	"github.com/dudk/split/log"
)

// ErrNoPort is returned when the input port is not found.
var ErrNoPort = errors.New("midi input port not found")

// Listener pushes messages of a MIDI input port into the queue. Realtime
// messages like clock and active sensing are ignored.
type Listener struct {
	port    drivers.In
	queue   *event.Queue
	channel int
	clock   func() time.Time
	logger  log.Logger

	received atomic.Uint64
	ignored  atomic.Uint64
}

// Option configures the listener.
type Option func(*Listener)

// WithChannel only passes channel messages of the channel.
func WithChannel(ch uint8) Option {
	return func(l *Listener) {
		l.channel = int(ch)
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithClock sets the clock used to timestamp messages.
func WithClock(clock func() time.Time) Option {
	return func(l *Listener) {
		l.clock = clock
	}
}

// New returns a listener of the port.
func New(port drivers.In, q *event.Queue, options ...Option) *Listener {
	l := &Listener{
		port:    port,
		queue:   q,
		channel: -1,
		clock:   time.Now,
	}
	for _, option := range options {
		option(l)
	}
	l.logger = log.OrDiscard(l.logger)
	return l
}

// Open finds the input port by name.
func Open(name string) (drivers.In, error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPort, name)
	}
	return in, nil
}

// Ports returns names of available input ports.
func Ports() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// Run listens to the port until the context is done. It has the signature
// of host.Producer.
func (l *Listener) Run(ctx context.Context) error {
	listenErr := make(chan error, 1)
	stop, err := midi.ListenTo(l.port, func(msg midi.Message, _ int32) {
		l.Handle(msg, l.clock())
	}, midi.UseSysEx(), midi.HandleError(func(err error) {
		select {
		case listenErr <- err:
		default:
		}
	}))
	if err != nil {
		return fmt.Errorf("listen to %v: %w", l.port, err)
	}
	defer stop()
	l.logger.Info(fmt.Sprintf("listening to %v", l.port))

	select {
	case <-ctx.Done():
		return nil
	case err := <-listenErr:
		return fmt.Errorf("listen to %v: %w", l.port, err)
	}
}

// Handle converts the message and pushes it into the queue with the
// arrival time. System exclusive data is copied.
func (l *Listener) Handle(msg midi.Message, at time.Time) {
	l.received.Add(1)
	if !l.accept(msg) {
		l.ignored.Add(1)
		return
	}
	data := msg.Bytes()
	if msg.Type() == midi.SysExMsg {
		data = append([]byte(nil), data...)
	}
	e, err := event.New(0, data)
	if err != nil {
		l.ignored.Add(1)
		l.logger.Debug(fmt.Sprintf("ignored message %v: %v", msg, err))
		return
	}
	if err := l.queue.TryPushAt(e, at); err != nil {
		l.logger.Warn(fmt.Sprintf("dropped %v: %v", msg, err))
	}
}

// accept passes channel messages of the listened channel and system
// exclusive messages if all channels are listened.
func (l *Listener) accept(msg midi.Message) bool {
	if len(msg) == 0 {
		return false
	}
	if msg.Type() == midi.SysExMsg {
		return l.channel < 0
	}
	var channel uint8
	if !msg.GetChannel(&channel) {
		return false
	}
	return l.channel < 0 || int(channel) == l.channel
}

// Received returns number of messages received from the port.
func (l *Listener) Received() uint64 {
	return l.received.Load()
}

// Ignored returns number of messages that were not queued because of
// the filter or invalid data.
func (l *Listener) Ignored() uint64 {
	return l.ignored.Load()
}
