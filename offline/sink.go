package offline

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/viert/lame"

	"github.com/dudk/split"
	"github.com/dudk/split/signal"
)

const wavPCMFormat = 1

// Sink receives rendered blocks.
type Sink interface {
	Write(buf signal.Buffer) error
	Close() error
}

// WavSink encodes blocks into a wav stream.
type WavSink struct {
	encoder  *wav.Encoder
	bitDepth signal.BitDepth
	ib       *audio.IntBuffer
	ints     []int
}

// NewWavSink returns a sink writing wav of the format and bit depth.
func NewWavSink(ws io.WriteSeeker, format split.Format, bitDepth signal.BitDepth) (*WavSink, error) {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	return &WavSink{
		encoder:  wav.NewEncoder(ws, format.SampleRate, int(bitDepth), format.Channels, wavPCMFormat),
		bitDepth: bitDepth,
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: format.Channels,
				SampleRate:  format.SampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
		ints: make([]int, format.Channels*format.MaxFrames),
	}, nil
}

// Write encodes the block.
func (s *WavSink) Write(buf signal.Buffer) error {
	n := buf.WriteInts(s.ints[:buf.Len()*buf.NumChannels()], s.bitDepth)
	s.ib.Data = s.ints[:n]
	return s.encoder.Write(s.ib)
}

// Close writes wav headers. Underlying writer is not closed.
func (s *WavSink) Close() error {
	return s.encoder.Close()
}

// Mp3Sink encodes blocks into mp3 stream with lame.
type Mp3Sink struct {
	writer *lame.LameWriter
	ints   []int
	bytes  []byte
}

// NewMp3Sink returns a sink encoding mp3 with the bit rate and quality.
func NewMp3Sink(w io.Writer, format split.Format, bitRate, quality int) *Mp3Sink {
	wr := lame.NewWriter(w)
	wr.Encoder.SetBitrate(bitRate)
	wr.Encoder.SetQuality(quality)
	wr.Encoder.SetNumChannels(format.Channels)
	wr.Encoder.SetInSamplerate(format.SampleRate)
	if format.Channels == 2 {
		wr.Encoder.SetMode(lame.JOINT_STEREO)
	}
	wr.Encoder.SetVBR(lame.VBR_RH)
	wr.Encoder.InitParams()
	return &Mp3Sink{
		writer: wr,
		ints:   make([]int, format.Channels*format.MaxFrames),
		bytes:  make([]byte, 2*format.Channels*format.MaxFrames),
	}
}

// Write encodes the block as 16 bit samples.
func (s *Mp3Sink) Write(buf signal.Buffer) error {
	n := buf.WriteInts(s.ints[:buf.Len()*buf.NumChannels()], signal.BitDepth16)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(s.bytes[2*i:], uint16(int16(s.ints[i])))
	}
	_, err := s.writer.Write(s.bytes[:2*n])
	return err
}

// Close flushes the encoder. Underlying writer is not closed.
func (s *Mp3Sink) Close() error {
	return s.writer.Close()
}

// fileSink closes the file after the sink.
type fileSink struct {
	Sink
	file *os.File
}

func (s fileSink) Close() error {
	var errs split.Errors
	if err := s.Sink.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errs.Ret()
}

// SinkOptions are the encoding settings of Create.
type SinkOptions struct {
	BitDepth signal.BitDepth
	BitRate  int
	Quality  int
}

// Create creates the output file. Type is detected by extension: wav and
// mp3 are supported.
func Create(path string, format split.Format, opts SinkOptions) (Sink, error) {
	var newSink func(f *os.File) (Sink, error)
	switch ext(path) {
	case ".wav":
		newSink = func(f *os.File) (Sink, error) {
			return NewWavSink(f, format, opts.BitDepth)
		}
	case ".mp3":
		newSink = func(f *os.File) (Sink, error) {
			return NewMp3Sink(f, format, opts.BitRate, opts.Quality), nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s, err := newSink(f)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return fileSink{Sink: s, file: f}, nil
}
