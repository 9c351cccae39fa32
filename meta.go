package split

import (
	"fmt"
)

// Meta describes a unit and its ports. Audio port lists hold port names
// and their length is the max number of ports. Nil list means the unit
// adapts to any number of channels.
type Meta struct {
	Name         string
	AudioInputs  []string
	AudioOutputs []string
	MIDIInputs   int
	MIDIOutputs  int
}

// Describer is implemented by units that declare their meta.
type Describer interface {
	Meta() Meta
}

// Describe returns the meta declared by the unit. Units without meta are
// named after their type.
func Describe(u Unit) Meta {
	if d, ok := u.(Describer); ok {
		return d.Meta()
	}
	return Meta{Name: fmt.Sprintf("%T", u)}
}

// Check returns *ConfigError if the declared ports can't serve the format.
// Units without inputs, like instruments, are not checked for inputs.
func (m Meta) Check(f Format) error {
	if m.AudioOutputs != nil && len(m.AudioOutputs) < f.Channels {
		return &ConfigError{
			Format: f,
			Err:    fmt.Errorf("%w: %s has %d outputs", ErrUnsupportedChannels, m.Name, len(m.AudioOutputs)),
		}
	}
	if len(m.AudioInputs) > 0 && len(m.AudioInputs) < f.Channels {
		return &ConfigError{
			Format: f,
			Err:    fmt.Errorf("%w: %s has %d inputs", ErrUnsupportedChannels, m.Name, len(m.AudioInputs)),
		}
	}
	return nil
}

// InputName returns the name of audio input i.
func (m Meta) InputName(i int) string {
	return portName(m.AudioInputs, "in", i)
}

// OutputName returns the name of audio output i.
func (m Meta) OutputName(i int) string {
	return portName(m.AudioOutputs, "out", i)
}

// Outputs returns names of the first n audio outputs.
func (m Meta) Outputs(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = m.OutputName(i)
	}
	return names
}

func portName(names []string, prefix string, i int) string {
	if i >= 0 && i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("%s %d", prefix, i+1)
}
