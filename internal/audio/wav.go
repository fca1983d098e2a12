package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavHeaderSize = 44
	wavPCMFormat  = 1
)

// WriteWAV writes b as a 16-bit PCM RIFF/WAVE file.
func (b Buffer) WriteWAV(w io.Writer) error {
	data, err := EncodeWAV(b)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("audio: writing wav: %w", err)
	}
	return nil
}

// EncodeWAV returns b as an in-memory WAV file.
func EncodeWAV(b Buffer) ([]byte, error) {
	out := &seekBuffer{buf: make([]byte, 0, wavHeaderSize+len(b.Samples)*BytesPerSample)}
	enc := newWAVEncoder(out, Format{SampleRate: b.SampleRate, Channels: b.Channels})
	if err := enc.write(b.Samples); err != nil {
		return nil, err
	}
	if err := enc.close(); err != nil {
		return nil, err
	}
	return out.buf, nil
}

// wavEncoder feeds float samples to a go-audio encoder. The header sizes
// are patched by close, so the target must be seekable.
type wavEncoder struct {
	enc    *wav.Encoder
	format *goaudio.Format
	ints   []int
}

func newWAVEncoder(w io.WriteSeeker, f Format) *wavEncoder {
	if f.SampleRate <= 0 {
		f.SampleRate = SampleRate
	}
	if f.Channels <= 0 {
		f.Channels = Channels
	}
	return &wavEncoder{
		enc:    wav.NewEncoder(w, f.SampleRate, 8*BytesPerSample, f.Channels, wavPCMFormat),
		format: &goaudio.Format{SampleRate: f.SampleRate, NumChannels: f.Channels},
	}
}

// write appends samples. A zero-length write still emits the header.
func (e *wavEncoder) write(samples []float32) error {
	e.ints = e.ints[:0]
	for _, s := range samples {
		e.ints = append(e.ints, int(toInt16(s)))
	}
	buf := &goaudio.IntBuffer{Format: e.format, Data: e.ints, SourceBitDepth: 8 * BytesPerSample}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("audio: writing samples: %w", err)
	}
	return nil
}

func (e *wavEncoder) close() error {
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("audio: finalising wav: %w", err)
	}
	return nil
}

// seekBuffer is an in-memory io.WriteSeeker.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if need := s.pos + len(p); need > len(s.buf) {
		s.buf = append(s.buf, make([]byte, need-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}
	s.pos = int(abs)
	return abs, nil
}

// toInt16 is the inverse of the 1/32768 decode scaling, clamped.
func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768.0)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
