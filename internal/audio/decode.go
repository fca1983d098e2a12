// Package audio turns the speech payload returned by the gateway into
// playable audio.
//
// PAYLOAD FORMAT:
// The provider returns raw linear PCM, base64 encoded, with no container:
// signed 16-bit little-endian samples, 24000 samples per second, one
// channel. Decode converts it into normalised float32 samples in [-1, 1);
// WriteWAV wraps it in a RIFF header so ordinary players (and browsers,
// through an <audio> element) can play it.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"
)

const (
	SampleRate = 24000
	Channels   = 1
	// BytesPerSample of the source encoding (s16le).
	BytesPerSample = 2
)

// Buffer holds decoded samples ready for playback.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Len is the number of samples per channel.
func (b Buffer) Len() int {
	if b.Channels <= 0 {
		return len(b.Samples)
	}
	return len(b.Samples) / b.Channels
}

// Duration is the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// Empty reports whether there is nothing to play.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}

// Decode converts a base64 s16le payload into a Buffer at 24 kHz mono.
// Empty or malformed input yields a zero-length buffer; an odd trailing
// byte is ignored.
func Decode(b64 string) Buffer {
	buf := Buffer{SampleRate: SampleRate, Channels: Channels}
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return buf
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return buf
	}
	buf.Samples = DecodePCM(raw)
	return buf
}

// DecodePCM converts raw s16le bytes into samples scaled by 1/32768.
func DecodePCM(raw []byte) []float32 {
	n := len(raw) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}
