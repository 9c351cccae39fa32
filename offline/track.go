package offline

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gopkg.in/yaml.v3"

	"github.com/dudk/split/event"
	"github.com/dudk/split/signal"
)

// ErrInvalidScript is returned when an event script can't be parsed.
var ErrInvalidScript = errors.New("invalid event script")

// Track is a list of events placed at absolute frames of the rendering.
// Events are kept sorted by frame, events at the same frame keep the order
// they were added in.
type Track struct {
	events []event.Event
}

// Add adds an event at absolute frame. Negative frames are rejected.
func (t *Track) Add(frame int, e event.Event) error {
	if frame < 0 {
		return &event.OutOfRangeError{Offset: frame}
	}
	e = e.At(frame)
	i := len(t.events)
	for i > 0 && t.events[i-1].Offset() > frame {
		i--
	}
	t.events = slices.Insert(t.events, i, e)
	return nil
}

// Len returns number of events.
func (t *Track) Len() int {
	return len(t.events)
}

// Frames returns the number of frames needed to render every event.
func (t *Track) Frames() int {
	if len(t.events) == 0 {
		return 0
	}
	return t.events[len(t.events)-1].Offset() + 1
}

// Events returns events with absolute frame offsets.
func (t *Track) Events() []event.Event {
	return t.events
}

// Block appends events of the block [start, start+frames) to dst with
// offsets relative to the block start.
func (t *Track) Block(start, frames int, dst []event.Event) []event.Event {
	i, _ := slices.BinarySearchFunc(t.events, start, func(e event.Event, frame int) int {
		if e.Offset() < frame {
			return -1
		}
		return 1
	})
	for ; i < len(t.events); i++ {
		offset := t.events[i].Offset() - start
		if offset >= frames {
			break
		}
		dst = append(dst, t.events[i].At(offset))
	}
	return dst
}

// ReadSMF reads every playable message of a Standard MIDI File. Tempo
// changes of the file are honoured, times are converted into frames at the
// sample rate.
func ReadSMF(r io.Reader, sampleRate int) (*Track, error) {
	var (
		t   Track
		err error
	)
	rd := smf.ReadTracksFrom(r).Do(func(te smf.TrackEvent) {
		if err != nil || !te.Message.IsPlayable() {
			return
		}
		var e event.Event
		e, err = event.FromMIDI(0, midi.Message(te.Message))
		if err != nil {
			return
		}
		frame := signal.FramesIn(sampleRate, time.Duration(te.AbsMicroSeconds)*time.Microsecond)
		err = t.Add(int(frame), e)
	})
	if rdErr := rd.Error(); rdErr != nil {
		return nil, fmt.Errorf("reading smf: %w", rdErr)
	}
	if err != nil {
		return nil, fmt.Errorf("reading smf: %w", err)
	}
	return &t, nil
}

// script is the YAML event script layout.
type script struct {
	Events []scriptEvent `yaml:"events"`
}

// scriptEvent is a single event of the script. Either frame or time must
// be set.
type scriptEvent struct {
	Frame      *int   `yaml:"frame"`
	Time       string `yaml:"time"`
	Type       string `yaml:"type"`
	Channel    uint8  `yaml:"channel"`
	Key        uint8  `yaml:"key"`
	Velocity   uint8  `yaml:"velocity"`
	Controller uint8  `yaml:"controller"`
	Value      int    `yaml:"value"`
}

// ReadScript reads a YAML event script:
//
//	events:
//	  - time: 250ms
//	    type: note_on
//	    key: 60
//	    velocity: 100
//	  - frame: 22050
//	    type: control
//	    controller: 7
//	    value: 64
//
// Supported types are note_on, note_off, control, program and bend.
func ReadScript(r io.Reader, sampleRate int) (*Track, error) {
	var s script
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	var t Track
	for i, se := range s.Events {
		frame, err := se.frame(sampleRate)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidScript, i, err)
		}
		e, err := se.event()
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidScript, i, err)
		}
		if err := t.Add(frame, e); err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidScript, i, err)
		}
	}
	return &t, nil
}

func (se scriptEvent) frame(sampleRate int) (int, error) {
	switch {
	case se.Frame != nil && se.Time != "":
		return 0, errors.New("both frame and time are set")
	case se.Frame != nil:
		return *se.Frame, nil
	case se.Time != "":
		d, err := time.ParseDuration(se.Time)
		if err != nil {
			return 0, err
		}
		return int(signal.FramesIn(sampleRate, d)), nil
	}
	return 0, errors.New("frame or time must be set")
}

func (se scriptEvent) event() (event.Event, error) {
	switch strings.ToLower(se.Type) {
	case "note_on":
		return event.Note(0, se.Channel, se.Key, se.Velocity), nil
	case "note_off":
		return event.NoteRelease(0, se.Channel, se.Key), nil
	case "control":
		return event.Control(0, se.Channel, se.Controller, uint8(se.Value)), nil
	case "program":
		return event.Program(0, se.Channel, uint8(se.Value)), nil
	case "bend":
		if se.Value < -8192 || se.Value > 8191 {
			return event.Event{}, fmt.Errorf("bend value %d", se.Value)
		}
		return event.Bend(0, se.Channel, int16(se.Value)), nil
	}
	return event.Event{}, fmt.Errorf("unknown type %q", se.Type)
}
