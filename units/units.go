// Package units provides reference processing units: a sine instrument, a
// gain effect, silence and a chain that runs several units as one.
package units

import (
	"math"
	"strings"

	"github.com/dudk/split"
	"github.com/dudk/split/event"
	"github.com/dudk/split/signal"
)

const (
	volumeController = 7
	// bendRange is pitch bend range in semitones.
	bendRange = 2.0
)

// Sine is a monophonic sine instrument. Note on starts the note, note off
// of the same key releases it, pitch bend detunes it. Output is added to
// the buffer.
type Sine struct {
	sampleRate float64
	key        uint8
	playing    bool
	amplitude  float64
	bend       float64
	phase      float64
	step       float64
}

// Init implements split.Unit.
func (s *Sine) Init(f split.Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.sampleRate = float64(f.SampleRate)
	s.playing = false
	s.phase = 0
	s.bend = 0
	return nil
}

// Process implements split.Processor.
func (s *Sine) Process(buf signal.Buffer, events []event.Event) error {
	for i := range events {
		s.apply(events[i])
	}
	if !s.playing {
		return nil
	}
	for i := 0; i < buf.Len(); i++ {
		v := s.amplitude * math.Sin(s.phase)
		for c := 0; c < buf.NumChannels(); c++ {
			buf.Add(c, i, v)
		}
		s.phase += s.step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return nil
}

func (s *Sine) apply(e event.Event) {
	switch e.Kind() {
	case event.NoteOn:
		s.key = e.Key()
		s.amplitude = float64(e.Velocity()) / 127
		s.playing = true
		s.tune()
	case event.NoteOff:
		if s.playing && e.Key() == s.key {
			s.playing = false
			s.phase = 0
		}
	case event.PitchBend:
		s.bend = float64(e.BendValue()) / 8192 * bendRange
		s.tune()
	}
}

// tune recalculates the phase step for current key and bend.
func (s *Sine) tune() {
	frequency := 440 * math.Pow(2, (float64(s.key)-69+s.bend)/12)
	s.step = 2 * math.Pi * frequency / s.sampleRate
}

// Meta implements split.Describer.
func (s *Sine) Meta() split.Meta {
	return split.Meta{Name: "sine", MIDIInputs: 1}
}

// Close implements split.Unit.
func (s *Sine) Close() error {
	return nil
}

// Gain is an effect that scales the buffer. Control change 7 sets the
// gain, other controllers are ignored.
type Gain struct {
	// Level is the current gain.
	Level float64
}

// Init implements split.Unit.
func (g *Gain) Init(f split.Format) error {
	return f.Validate()
}

// Process implements split.Processor.
func (g *Gain) Process(buf signal.Buffer, events []event.Event) error {
	for i := range events {
		if events[i].Kind() == event.ControlChange && events[i].Controller() == volumeController {
			g.Level = float64(events[i].Value()) / 127
		}
	}
	for c := 0; c < buf.NumChannels(); c++ {
		for i := 0; i < buf.Len(); i++ {
			buf.Set(c, i, buf.At(c, i)*g.Level)
		}
	}
	return nil
}

// Meta implements split.Describer.
func (g *Gain) Meta() split.Meta {
	return split.Meta{Name: "gain", MIDIInputs: 1}
}

// Close implements split.Unit.
func (g *Gain) Close() error {
	return nil
}

// Silence zeroes the buffer. It's used to render instruments from
// silence when the host provides input.
type Silence struct{}

// Init implements split.Unit.
func (Silence) Init(split.Format) error { return nil }

// Process implements split.Processor.
func (Silence) Process(buf signal.Buffer, _ []event.Event) error {
	buf.Zero()
	return nil
}

// Meta implements split.Describer.
func (Silence) Meta() split.Meta { return split.Meta{Name: "silence"} }

// Close implements split.Unit.
func (Silence) Close() error { return nil }

// Chain runs units one after another on every sub-block with the same
// events. The first unit error aborts the sub-block.
type Chain []split.Unit

// Init initializes units in order. If any unit fails, already initialized
// units are closed.
func (ch Chain) Init(f split.Format) error {
	for i, u := range ch {
		if err := u.Init(f); err != nil {
			for j := 0; j < i; j++ {
				_ = ch[j].Close()
			}
			return err
		}
	}
	return nil
}

// Process implements split.Processor.
func (ch Chain) Process(buf signal.Buffer, events []event.Event) error {
	for _, u := range ch {
		if err := u.Process(buf, events); err != nil {
			return err
		}
	}
	return nil
}

// Meta implements split.Describer. Chain has the ports that every unit
// can serve.
func (ch Chain) Meta() split.Meta {
	var (
		m     split.Meta
		names = make([]string, 0, len(ch))
	)
	for _, u := range ch {
		um := split.Describe(u)
		names = append(names, um.Name)
		m.AudioInputs = fewer(m.AudioInputs, um.AudioInputs)
		m.AudioOutputs = fewer(m.AudioOutputs, um.AudioOutputs)
		m.MIDIInputs = max(m.MIDIInputs, um.MIDIInputs)
		m.MIDIOutputs = max(m.MIDIOutputs, um.MIDIOutputs)
	}
	m.Name = strings.Join(names, " > ")
	return m
}

// fewer returns the declared port list with fewer ports.
func fewer(a, b []string) []string {
	if a == nil || (b != nil && len(b) < len(a)) {
		return b
	}
	return a
}

// Close closes all units and returns all errors.
func (ch Chain) Close() error {
	var errs split.Errors
	for _, u := range ch {
		if err := u.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.Ret()
}
