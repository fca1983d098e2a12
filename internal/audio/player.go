package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrPlayback is reported when an output stream cannot be opened or written.
var ErrPlayback = errors.New("audio: playback failed")

// User-facing notices for the speech surfaces.
const (
	PlaybackNotice   = "Could not play audio. Ensure an audio output is available."
	SynthesisNotice  = "Failed to generate audio."
	writeChunkFrames = 2400 // 100 ms at 24 kHz
)

// Format describes the samples a Stream will receive.
type Format struct {
	SampleRate int
	Channels   int
}

// Sink opens output streams. One Player opens at most one stream at a time.
type Sink interface {
	Open(f Format) (Stream, error)
}

// Stream receives samples until it is closed.
type Stream interface {
	Write(samples []float32) error
	Close() error
}

// Player owns the single playback context of one player surface.
//
// LIFECYCLE:
// Play always releases the current context before opening a new one, so a
// surface never holds two output streams. Playback itself runs in a
// goroutine; Play returns as soon as the stream is open. Stop (or closing
// the surface) closes the stream and waits for the writer to exit.
type Player struct {
	sink   Sink
	logger *slog.Logger

	// playMu serialises PlayBuffer and Stop, so releasing the old context
	// and opening the new one happen as one step.
	playMu sync.Mutex

	mu      sync.Mutex
	current *playback
	lastErr error
}

type playback struct {
	stream Stream
	stop   chan struct{}
	done   chan struct{}
}

func NewPlayer(sink Sink, logger *slog.Logger) *Player {
	return &Player{sink: sink, logger: logger}
}

// Play decodes a base64 payload and starts playing it.
// A zero-length payload stops any current playback and otherwise does nothing.
func (p *Player) Play(b64 string) error {
	return p.PlayBuffer(Decode(b64))
}

// PlayBuffer starts playing buf, releasing any current context first.
func (p *Player) PlayBuffer(buf Buffer) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.stop()
	if buf.Empty() {
		return nil
	}

	stream, err := p.sink.Open(Format{SampleRate: buf.SampleRate, Channels: buf.Channels})
	if err != nil {
		err = fmt.Errorf("%w: opening stream: %w", ErrPlayback, err)
		p.setErr(err)
		return err
	}

	pb := &playback{stream: stream, stop: make(chan struct{}), done: make(chan struct{})}
	p.mu.Lock()
	p.current = pb
	p.lastErr = nil
	p.mu.Unlock()

	go p.run(pb, buf.Samples, buf.Channels)
	return nil
}

func (p *Player) run(pb *playback, samples []float32, channels int) {
	defer close(pb.done)
	defer p.release(pb)
	if channels <= 0 {
		channels = 1
	}
	step := writeChunkFrames * channels
	for off := 0; off < len(samples); off += step {
		select {
		case <-pb.stop:
			return
		default:
		}
		end := min(off+step, len(samples))
		if err := pb.stream.Write(samples[off:end]); err != nil {
			err = fmt.Errorf("%w: writing samples: %w", ErrPlayback, err)
			p.logger.Error("audio playback failed", "error", err)
			p.setErr(err)
			return
		}
	}
}

// release closes pb's stream, then clears it as current if it still is.
// Closing first means Wait never returns before the sink is finalised.
func (p *Player) release(pb *playback) {
	if err := pb.stream.Close(); err != nil {
		p.logger.Warn("closing audio stream", "error", err)
	}
	p.mu.Lock()
	if p.current == pb {
		p.current = nil
	}
	p.mu.Unlock()
}

// Stop ends the current playback, if any, and waits for its writer to exit.
func (p *Player) Stop() {
	p.playMu.Lock()
	defer p.playMu.Unlock()
	p.stop()
}

// stop requires playMu.
func (p *Player) stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()
	if pb == nil {
		return
	}
	if i, ok := pb.stream.(Interrupter); ok {
		i.Interrupt()
	}
	close(pb.stop)
	<-pb.done
}

// Wait blocks until the current playback finishes on its own or is stopped.
func (p *Player) Wait() error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	if pb != nil {
		<-pb.done
	}
	return p.Err()
}

// Playing reports whether a context is open.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Err returns the failure of the most recent playback, if any.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Notice is the message to show for err, or "" when playback is fine.
func Notice(err error) string {
	if err == nil {
		return ""
	}
	return PlaybackNotice
}

func (p *Player) setErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}
