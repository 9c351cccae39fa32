package signal

import (
	"errors"
	"fmt"
)

var (
	// ErrNoChannels is returned when a buffer is built without channels.
	ErrNoChannels = errors.New("buffer must have at least one channel")
	// ErrChannelLength is returned when planar channels differ in length.
	ErrChannelLength = errors.New("all channels must have the same length")
	// ErrInterleavedLength is returned when interleaved data is not a
	// multiple of the number of channels.
	ErrInterleavedLength = errors.New("interleaved data length must be a multiple of channels")
)

// Buffer is a non-owning view over one block of multichannel float64
// samples. The storage stays owned by the caller and the view is only
// valid for the duration of a single scheduling call; it must not be
// retained after the call returns.
//
// Buffer is a small value type: narrowing it with Slice never allocates,
// so sub-block views can be produced on the audio thread.
type Buffer struct {
	planar      [][]float64
	interleaved []float64
	numChannels int
	offset      int
	frames      int
}

// Planar returns a view over non-interleaved storage, one slice per channel.
func Planar(channels [][]float64) (Buffer, error) {
	if len(channels) == 0 {
		return Buffer{}, ErrNoChannels
	}
	frames := len(channels[0])
	for i := range channels {
		if len(channels[i]) != frames {
			return Buffer{}, fmt.Errorf("channel %d has %d frames, expected %d: %w", i, len(channels[i]), frames, ErrChannelLength)
		}
	}
	return Buffer{
		planar:      channels,
		numChannels: len(channels),
		frames:      frames,
	}, nil
}

// Interleaved returns a view over interleaved storage.
func Interleaved(data []float64, numChannels int) (Buffer, error) {
	if numChannels <= 0 {
		return Buffer{}, ErrNoChannels
	}
	if len(data)%numChannels != 0 {
		return Buffer{}, fmt.Errorf("%d samples for %d channels: %w", len(data), numChannels, ErrInterleavedLength)
	}
	return Buffer{
		interleaved: data,
		numChannels: numChannels,
		frames:      len(data) / numChannels,
	}, nil
}

// Len returns number of frames in the view.
func (b Buffer) Len() int {
	return b.frames
}

// NumChannels returns number of channels in the view.
func (b Buffer) NumChannels() int {
	return b.numChannels
}

// Offset returns the position of the first frame of the view in the
// original block.
func (b Buffer) Offset() int {
	return b.offset
}

// IsInterleaved returns true if the view is backed by interleaved storage.
func (b Buffer) IsInterleaved() bool {
	return b.interleaved != nil
}

// Slice narrows the view to frames [start, end) relative to this view. It
// panics if the range is invalid, the same way slicing does.
func (b Buffer) Slice(start, end int) Buffer {
	if start < 0 || end < start || end > b.frames {
		panic(fmt.Sprintf("signal: slice bounds [%d:%d] out of range with length %d", start, end, b.frames))
	}
	b.offset += start
	b.frames = end - start
	return b
}

// Channel returns samples of the channel within the view. It returns nil
// for interleaved views, use At and Set instead.
func (b Buffer) Channel(c int) []float64 {
	if b.planar == nil {
		return nil
	}
	return b.planar[c][b.offset : b.offset+b.frames]
}

// At returns the sample of channel c at frame i of the view.
func (b Buffer) At(c, i int) float64 {
	if b.planar != nil {
		return b.planar[c][b.offset+i]
	}
	return b.interleaved[(b.offset+i)*b.numChannels+c]
}

// Set assigns the sample of channel c at frame i of the view.
func (b Buffer) Set(c, i int, v float64) {
	if b.planar != nil {
		b.planar[c][b.offset+i] = v
		return
	}
	b.interleaved[(b.offset+i)*b.numChannels+c] = v
}

// Add adds v to the sample of channel c at frame i of the view.
func (b Buffer) Add(c, i int, v float64) {
	b.Set(c, i, b.At(c, i)+v)
}

// Zero silences every sample of the view.
func (b Buffer) Zero() {
	if b.planar != nil {
		for c := range b.planar {
			ch := b.planar[c][b.offset : b.offset+b.frames]
			for i := range ch {
				ch[i] = 0
			}
		}
		return
	}
	data := b.interleaved[b.offset*b.numChannels : (b.offset+b.frames)*b.numChannels]
	for i := range data {
		data[i] = 0
	}
}

// CopyTo copies samples of the view into dst. Only the common channels and
// frames are copied. Returns number of frames copied.
func (b Buffer) CopyTo(dst Buffer) int {
	frames := b.frames
	if dst.frames < frames {
		frames = dst.frames
	}
	numChannels := b.numChannels
	if dst.numChannels < numChannels {
		numChannels = dst.numChannels
	}
	if b.planar != nil && dst.planar != nil {
		for c := 0; c < numChannels; c++ {
			copy(dst.Channel(c)[:frames], b.Channel(c)[:frames])
		}
		return frames
	}
	for c := 0; c < numChannels; c++ {
		for i := 0; i < frames; i++ {
			dst.Set(c, i, b.At(c, i))
		}
	}
	return frames
}
