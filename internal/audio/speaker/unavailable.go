//go:build !(darwin || windows || (linux && speaker))

package speaker

import "github.com/sakif/nexusmena/internal/audio"

const Available = false

// Sink has no device in this build; Open always fails.
type Sink struct{}

func New() Sink { return Sink{} }

func (Sink) Open(audio.Format) (audio.Stream, error) {
	return nil, ErrUnavailable
}
