// Package speaker plays audio on the default output device.
//
// The device backend is oto. On Linux it links ALSA through cgo, so it is
// only built with -tags speaker (and libasound2-dev installed); macOS and
// Windows need neither. Without a backend, Sink.Open returns
// ErrUnavailable.
package speaker

import "errors"

// ErrUnavailable is returned when no output device can be opened, either
// because the build has no device backend or the device refused.
var ErrUnavailable = errors.New("speaker: no audio output available")
