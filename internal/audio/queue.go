package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
)

// ErrQueueClosed is returned by Write after Close or Abort.
var ErrQueueClosed = errors.New("audio: queue closed")

// Interrupter is implemented by streams that can cut playback short.
// Player.Stop calls Interrupt before waiting for the stream to close, so a
// device stream does not drain what it has buffered.
type Interrupter interface {
	Interrupt()
}

// Queue turns Stream writes into an io.Reader of float32 little-endian
// samples, the shape device libraries pull from.
//
// Read blocks until samples arrive. After Close it drains what is left and
// then returns io.EOF; after Abort it returns io.EOF at once.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	closed  bool
	aborted bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Write(samples []float32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.aborted {
		return ErrQueueClosed
	}
	for _, s := range samples {
		q.buf = binary.LittleEndian.AppendUint32(q.buf, math.Float32bits(s))
	}
	q.cond.Broadcast()
	return nil
}

func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 && !q.closed && !q.aborted {
		q.cond.Wait()
	}
	if q.aborted || len(q.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	return n, nil
}

// Close ends the input. Buffered samples are still read.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Abort drops buffered samples and ends reading.
func (q *Queue) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.buf = nil
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Buffered is the number of unread bytes.
func (q *Queue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
