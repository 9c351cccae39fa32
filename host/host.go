// Package host contains the glue shared by all host adapters.
//
// Adapter owns the host callback. For every block delivered by the host it
// obtains a buffer view and calls Engine.Block with the events delivered by
// the host. Engine drains the live event queue, builds the event stream,
// schedules the unit and maps the result into a host Decision. Since all
// adapters use the same Engine, the same input is split the same way no
// matter which host runs the unit.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dudk/split"
)

// Kind of the host adapter.
type Kind int

// Adapter kinds.
const (
	Mock Kind = iota
	PortAudio
	Malgo
	Plugin
	Offline
)

var kindNames = map[Kind]string{
	Mock:      "mock",
	PortAudio: "portaudio",
	Malgo:     "malgo",
	Plugin:    "plugin",
	Offline:   "offline",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrUnknownKind is returned when adapter kind cannot be resolved.
var ErrUnknownKind = errors.New("unknown adapter kind")

// ParseKind returns adapter kind by its name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Adapter translates host callbacks into engine blocks. Run blocks until
// the host is done, the context is done or the engine is stopped.
type Adapter interface {
	Kind() Kind
	Run(ctx context.Context, e *Engine) error
}

// Factory creates an adapter for the format.
type Factory func(split.Format) (Adapter, error)

// Factories resolves adapters by kind. Resolution happens once at session
// setup.
type Factories map[Kind]Factory

// Open creates the adapter of provided kind.
func (fs Factories) Open(kind Kind, format split.Format) (Adapter, error) {
	factory, ok := fs[kind]
	if !ok {
		return nil, fmt.Errorf("%v: %w", kind, ErrUnknownKind)
	}
	return factory(format)
}

// Decision is what adapter should do with the block output.
type Decision int

const (
	// Continue means output is handed to the host as is.
	Continue Decision = iota
	// Mute means output was silenced and the session goes on.
	Mute
	// Stop means output was silenced and the session must stop.
	Stop
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Mute:
		return "mute"
	case Stop:
		return "stop"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Policy maps processing errors into decisions.
type Policy int

const (
	// ContinueOnError keeps partial output and goes on.
	ContinueOnError Policy = iota
	// MuteOnError silences the failed block and goes on.
	MuteOnError
	// StopOnError silences the failed block and stops the session.
	StopOnError
)

// ErrUnknownPolicy is returned when policy cannot be parsed.
var ErrUnknownPolicy = errors.New("unknown error policy")

// ParsePolicy returns policy by its name: continue, mute or stop.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "continue":
		return ContinueOnError, nil
	case "mute":
		return MuteOnError, nil
	case "stop":
		return StopOnError, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownPolicy)
}

func (p Policy) String() string {
	switch p {
	case ContinueOnError:
		return "continue"
	case MuteOnError:
		return "mute"
	case StopOnError:
		return "stop"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Decide returns the decision for the block result. Processing errors are
// mapped according to the policy, any other error stops the session.
func (p Policy) Decide(err error) Decision {
	if err == nil {
		return Continue
	}
	var pe *split.ProcessingError
	if !errors.As(err, &pe) {
		return Stop
	}
	switch p {
	case ContinueOnError:
		return Continue
	case MuteOnError:
		return Mute
	}
	return Stop
}

// BlockError is reported by the engine when a block fails. Block is the
// index of the failed block, starting at zero.
type BlockError struct {
	Block    uint64
	Decision Decision
	Err      error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d (%v): %v", e.Block, e.Decision, e.Err)
}

// Unwrap returns the cause.
func (e *BlockError) Unwrap() error {
	return e.Err
}
