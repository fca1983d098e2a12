package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// ============================================================
// WAV file
// ============================================================

// WAVFileSink writes each playback to a WAV file at Path, replacing it.
type WAVFileSink struct {
	Path string
}

func (s WAVFileSink) Open(f Format) (Stream, error) {
	file, err := os.Create(s.Path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", s.Path, err)
	}
	// the header is written with the first samples and patched on Close
	return &fileStream{f: file, enc: newWAVEncoder(file, f)}, nil
}

type fileStream struct {
	f   *os.File
	enc *wavEncoder
}

func (s *fileStream) Write(samples []float32) error {
	return s.enc.write(samples)
}

func (s *fileStream) Close() error {
	// a stream closed before any write still becomes a valid empty file
	if err := errors.Join(s.enc.write(nil), s.enc.close()); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// ============================================================
// io.Writer
// ============================================================

// WriterSink buffers a playback and writes it to W as one WAV file when the
// stream closes. Suitable for HTTP responses and pipes, which cannot seek.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Open(f Format) (Stream, error) {
	if s.W == nil {
		return nil, fmt.Errorf("writer sink has no writer")
	}
	return &writerStream{w: s.W, format: f}, nil
}

type writerStream struct {
	w       io.Writer
	format  Format
	samples []float32
}

func (s *writerStream) Write(samples []float32) error {
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *writerStream) Close() error {
	buf := Buffer{Samples: s.samples, SampleRate: s.format.SampleRate, Channels: s.format.Channels}
	if err := buf.WriteWAV(s.w); err != nil {
		return fmt.Errorf("audio: flushing wav: %w", err)
	}
	return nil
}

// ============================================================
// Discard
// ============================================================

// DiscardSink accepts and drops every sample. It counts what it saw so
// headless runs and tests can check playback happened.
type DiscardSink struct {
	opened  atomic.Int64
	closed  atomic.Int64
	samples atomic.Int64
}

func (s *DiscardSink) Open(Format) (Stream, error) {
	s.opened.Add(1)
	return discardStream{s}, nil
}

// Opened, Closed and Samples report totals across all streams.
func (s *DiscardSink) Opened() int64  { return s.opened.Load() }
func (s *DiscardSink) Closed() int64  { return s.closed.Load() }
func (s *DiscardSink) Samples() int64 { return s.samples.Load() }

type discardStream struct{ s *DiscardSink }

func (d discardStream) Write(samples []float32) error {
	d.s.samples.Add(int64(len(samples)))
	return nil
}

func (d discardStream) Close() error {
	d.s.closed.Add(1)
	return nil
}
