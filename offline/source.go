package offline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/dudk/split/signal"
)

var (
	// ErrUnsupportedFile is returned for files of unknown type.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrInvalidFile is returned when file content doesn't match its type.
	ErrInvalidFile = errors.New("invalid file")
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
)

// Source is a reference audio stream read into every block before the
// unit processes it.
type Source interface {
	SampleRate() int
	NumChannels() int
	// Read fills the buffer from the beginning. Returns number of frames
	// read and io.EOF when the stream is over.
	Read(buf signal.Buffer) (int, error)
	Close() error
}

// decoder reads interleaved samples.
type decoder interface {
	read(dst []float64) (int, error)
}

// source maps decoded channels to the buffer channels. Mono sources are
// copied into every channel, extra source channels are dropped.
type source struct {
	decoder
	io.Closer
	sampleRate  int
	numChannels int
	scratch     []float64
}

func (s *source) SampleRate() int {
	return s.sampleRate
}

func (s *source) NumChannels() int {
	return s.numChannels
}

func (s *source) Read(buf signal.Buffer) (int, error) {
	frames := buf.Len()
	if size := frames * s.numChannels; cap(s.scratch) < size {
		s.scratch = make([]float64, size)
	}
	read := 0
	for read < frames {
		n, err := s.read(s.scratch[read*s.numChannels : frames*s.numChannels])
		read += n / s.numChannels
		if err != nil || n == 0 {
			s.copyTo(buf, read)
			if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			return read, err
		}
	}
	s.copyTo(buf, read)
	return read, nil
}

func (s *source) copyTo(buf signal.Buffer, frames int) {
	for c := 0; c < buf.NumChannels(); c++ {
		sc := c
		if sc >= s.numChannels {
			if s.numChannels != 1 {
				continue
			}
			sc = 0
		}
		for i := 0; i < frames; i++ {
			buf.Set(c, i, s.scratch[i*s.numChannels+sc])
		}
	}
}

// Open opens the reference audio file. Type is detected by extension:
// wav, aiff, mp3 and ogg vorbis are supported.
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var s *source
	switch ext(path) {
	case ".wav":
		s, err = newWavSource(f)
	case ".aif", ".aiff":
		s, err = newAiffSource(f)
	case ".mp3":
		s, err = newMp3Source(f)
	case ".ogg", ".oga":
		s, err = newOggSource(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	s.Closer = f
	return s, nil
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// intDecoder reads int samples of go-audio decoders.
type intDecoder struct {
	pcm interface {
		PCMBuffer(*audio.IntBuffer) (int, error)
	}
	numChannels int
	bitDepth    signal.BitDepth
	ib          *audio.IntBuffer
}

func (d *intDecoder) read(dst []float64) (int, error) {
	if cap(d.ib.Data) < len(dst) {
		d.ib.Data = make([]int, len(dst))
	}
	d.ib.Data = d.ib.Data[:len(dst)]
	n, err := d.pcm.PCMBuffer(d.ib)
	if n == 0 {
		return 0, err
	}
	return readInts(dst, d.ib.Data[:n], d.numChannels, d.bitDepth), err
}

// readInts converts interleaved ints into floats with the signal package
// conversion, so files written by the wav sink read back the same.
func readInts(dst []float64, ints []int, numChannels int, bitDepth signal.BitDepth) int {
	n := len(ints) - len(ints)%numChannels
	view, err := signal.Interleaved(dst[:n], numChannels)
	if err != nil {
		return 0
	}
	return view.ReadInts(ints[:n], bitDepth) * numChannels
}

func newWavSource(rs io.ReadSeeker) (*source, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", ErrInvalidFile)
	}
	format := dec.Format()
	bitDepth := signal.BitDepth(dec.BitDepth)
	if !bitDepth.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, dec.BitDepth)
	}
	return &source{
		decoder: &intDecoder{
			pcm:         dec,
			numChannels: format.NumChannels,
			bitDepth:    bitDepth,
			ib:          &audio.IntBuffer{Format: format, SourceBitDepth: int(bitDepth)},
		},
		sampleRate:  format.SampleRate,
		numChannels: format.NumChannels,
	}, nil
}

func newAiffSource(rs io.ReadSeeker) (*source, error) {
	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an aiff file", ErrInvalidFile)
	}
	dec.ReadInfo()
	format := dec.Format()
	if format == nil {
		return nil, fmt.Errorf("%w: unsupported aiff layout", ErrInvalidFile)
	}
	bitDepth := signal.BitDepth(dec.BitDepth)
	if !bitDepth.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, dec.BitDepth)
	}
	return &source{
		decoder: &intDecoder{
			pcm:         dec,
			numChannels: format.NumChannels,
			bitDepth:    bitDepth,
			ib:          &audio.IntBuffer{Format: format, SourceBitDepth: int(bitDepth)},
		},
		sampleRate:  format.SampleRate,
		numChannels: format.NumChannels,
	}, nil
}

// mp3Decoder reads 16 bit little endian stereo samples.
type mp3Decoder struct {
	dec   *mp3.Decoder
	bytes []byte
	ints  []int
}

const mp3Channels = 2

func newMp3Source(r io.Reader) (*source, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return &source{
		decoder:     &mp3Decoder{dec: dec},
		sampleRate:  dec.SampleRate(),
		numChannels: mp3Channels,
	}, nil
}

func (d *mp3Decoder) read(dst []float64) (int, error) {
	if cap(d.bytes) < 2*len(dst) {
		d.bytes = make([]byte, 2*len(dst))
		d.ints = make([]int, len(dst))
	}
	n, err := io.ReadFull(d.dec, d.bytes[:2*len(dst)])
	samples := n / 2
	for i := 0; i < samples; i++ {
		d.ints[i] = int(int16(binary.LittleEndian.Uint16(d.bytes[2*i:])))
	}
	return readInts(dst, d.ints[:samples], mp3Channels, signal.BitDepth16), err
}

// oggDecoder reads interleaved float32 samples.
type oggDecoder struct {
	dec    *oggvorbis.Reader
	floats []float32
}

func newOggSource(r io.Reader) (*source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return &source{
		decoder:     &oggDecoder{dec: dec},
		sampleRate:  dec.SampleRate(),
		numChannels: dec.Channels(),
	}, nil
}

func (d *oggDecoder) read(dst []float64) (int, error) {
	if cap(d.floats) < len(dst) {
		d.floats = make([]float32, len(dst))
	}
	n, err := d.dec.Read(d.floats[:len(dst)])
	for i := 0; i < n; i++ {
		dst[i] = float64(d.floats[i])
	}
	return n, err
}
