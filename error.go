package split

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFrameMismatch is returned when buffer and event stream describe
	// blocks of different length.
	ErrFrameMismatch = errors.New("buffer and event stream frames mismatch")
	// ErrUnsupportedChannels is returned when unit doesn't support the
	// channel layout.
	ErrUnsupportedChannels = errors.New("unsupported channel layout")
	// ErrUnsupportedSampleRate is returned when unit doesn't support the
	// sample rate.
	ErrUnsupportedSampleRate = errors.New("unsupported sample rate")
	// ErrInvalidBlockSize is returned for non-positive block sizes.
	ErrInvalidBlockSize = errors.New("invalid block size")
)

// ConfigError is returned when a unit or a session cannot be set up with
// the format. It's fatal to the session.
type ConfigError struct {
	Format Format
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %v: %v", e.Format, e.Err)
}

// Unwrap returns the cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ProcessingError is returned when a unit fails to process a sub-block.
// Sub-blocks after [Start, End) were not processed.
type ProcessingError struct {
	Start int
	End   int
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing [%d, %d): %v", e.Start, e.End, e.Err)
}

// Unwrap returns the cause.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Errors wraps errors that might occur when multiple components fail,
// for example when several units are closed.
type Errors []error

func (e Errors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e Errors) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// Ret returns untyped nil if error list is empty.
func (e Errors) Ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
