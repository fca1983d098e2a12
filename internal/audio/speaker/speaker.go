//go:build darwin || windows || (linux && speaker)

package speaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/sakif/nexusmena/internal/audio"
)

// Available reports whether this build has a device backend.
const Available = true

const readyTimeout = 5 * time.Second

// oto allows one context per process; the first Open fixes its format.
var (
	ctxOnce   sync.Once
	ctx       *oto.Context
	ctxFormat audio.Format
	ctxErr    error
)

func deviceContext(f audio.Format) (*oto.Context, error) {
	ctxOnce.Do(func() {
		c, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatFloat32LE,
		})
		if err != nil {
			ctxErr = fmt.Errorf("%w: %w", ErrUnavailable, err)
			return
		}
		select {
		case <-ready:
		case <-time.After(readyTimeout):
			ctxErr = fmt.Errorf("%w: device not ready after %s", ErrUnavailable, readyTimeout)
			return
		}
		ctx, ctxFormat = c, f
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	if f != ctxFormat {
		return nil, fmt.Errorf("speaker: format %+v differs from the open device format %+v", f, ctxFormat)
	}
	return ctx, nil
}

// Sink opens streams on the default output device.
type Sink struct{}

func New() Sink { return Sink{} }

func (Sink) Open(f audio.Format) (audio.Stream, error) {
	if f.SampleRate <= 0 {
		f.SampleRate = audio.SampleRate
	}
	if f.Channels <= 0 {
		f.Channels = audio.Channels
	}
	c, err := deviceContext(f)
	if err != nil {
		return nil, err
	}

	q := audio.NewQueue()
	s := &stream{q: q, player: c.NewPlayer(q), started: make(chan struct{})}
	// Play reads the first device buffer from q and blocks until the
	// writer has filled it, so it cannot run on the writer's goroutine.
	go func() {
		defer close(s.started)
		s.player.Play()
	}()
	return s, nil
}

type stream struct {
	q       *audio.Queue
	player  *oto.Player
	started chan struct{}
}

func (s *stream) Write(samples []float32) error {
	return s.q.Write(samples)
}

func (s *stream) Interrupt() {
	s.q.Abort()
	s.player.Pause()
}

// Close waits until the device has played everything written, unless the
// stream was interrupted.
func (s *stream) Close() error {
	s.q.Close()
	<-s.started
	for s.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.player.Err(); err != nil {
		s.player.Close()
		return fmt.Errorf("speaker: %w", err)
	}
	return s.player.Close()
}
