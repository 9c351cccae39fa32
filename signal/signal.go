// Package signal provides the buffer view handed to processing units and
// the sample format conversions used by backend adapters. It allows to:
// 	- view planar or interleaved float64 storage as one block of frames
// 	- narrow a view to a frame range without allocation
// 	- convert between float and int samples of a given bit depth
package signal

import (
	"math"
	"time"
)

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// divider is used when int to float conversion is done.
func (bitDepth BitDepth) divider() float64 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() float64 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// Valid returns true for bit depths supported by file codecs.
func (bitDepth BitDepth) Valid() bool {
	switch bitDepth {
	case BitDepth8, BitDepth16, BitDepth24, BitDepth32:
		return true
	}
	return false
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// FramesIn returns the number of frames that fit into the duration at the
// provided sample rate. Fractions are truncated.
func FramesIn(sampleRate int, d time.Duration) int64 {
	return int64(d) * int64(sampleRate) / int64(time.Second)
}

// Alloc returns planar storage of specified dimensions. Adapters call it
// once at setup, never per block.
func Alloc(numChannels, frames int) [][]float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, frames)
	}
	return result
}

// ReadInts fills the view from interleaved int samples. Returns number of
// frames read.
func (b Buffer) ReadInts(ints []int, bitDepth BitDepth) int {
	numChannels := b.NumChannels()
	frames := len(ints) / numChannels
	if frames > b.Len() {
		frames = b.Len()
	}
	divider := bitDepth.divider()
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			b.Set(c, i, float64(ints[i*numChannels+c])/divider)
		}
	}
	return frames
}

// WriteInts converts the view into interleaved int samples, clipping to
// [-1, 1]. Returns number of ints written.
func (b Buffer) WriteInts(ints []int, bitDepth BitDepth) int {
	numChannels := b.NumChannels()
	frames := len(ints) / numChannels
	if frames > b.Len() {
		frames = b.Len()
	}
	multiplier := bitDepth.multiplier()
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			ints[i*numChannels+c] = int(clip(b.At(c, i)) * multiplier)
		}
	}
	return frames * numChannels
}

// ReadPlanar32 fills the view from planar float32 host storage.
func (b Buffer) ReadPlanar32(src [][]float32) {
	for c := range src {
		if c >= b.NumChannels() {
			return
		}
		for i, v := range src[c] {
			if i >= b.Len() {
				break
			}
			b.Set(c, i, float64(v))
		}
	}
}

// WritePlanar32 copies the view into planar float32 host storage.
func (b Buffer) WritePlanar32(dst [][]float32) {
	for c := range dst {
		if c >= b.NumChannels() {
			// host has more channels than the view: silence them.
			for i := range dst[c] {
				dst[c][i] = 0
			}
			continue
		}
		for i := range dst[c] {
			if i >= b.Len() {
				break
			}
			dst[c][i] = float32(b.At(c, i))
		}
	}
}

// ReadInterleaved32 fills the view from interleaved float32 samples.
func (b Buffer) ReadInterleaved32(src []float32) {
	numChannels := b.NumChannels()
	frames := len(src) / numChannels
	if frames > b.Len() {
		frames = b.Len()
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			b.Set(c, i, float64(src[i*numChannels+c]))
		}
	}
}

// WriteInterleaved32 copies the view into interleaved float32 samples.
func (b Buffer) WriteInterleaved32(dst []float32) {
	numChannels := b.NumChannels()
	frames := len(dst) / numChannels
	if frames > b.Len() {
		frames = b.Len()
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			dst[i*numChannels+c] = float32(b.At(c, i))
		}
	}
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
