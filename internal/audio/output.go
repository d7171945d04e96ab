package audio

import (
	"errors"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// ErrNoOutput is returned when no audio device is available.
var ErrNoOutput = errors.New("no audio output available")

// Params are the live-adjustable properties of a voice.
type Params struct {
	Gain float64 // linear, 0..1
	Rate float64 // playback-rate multiplier with detune folded in
}

// ParamsFor derives voice params from control settings.
func ParamsFor(s tts.ControlSettings) Params {
	return Params{Gain: s.Gain(), Rate: s.PlaybackRate()}
}

// Output opens voices on an audio device.
type Output interface {
	// Open starts playing buf immediately.
	Open(buf *Buffer, p Params) (Voice, error)
}

// Voice is one buffer playing on an Output.
type Voice interface {
	SetGain(gain float64)
	SetRate(rate float64)

	// Stop halts playback. Done is closed afterwards.
	Stop()

	// Done is closed when the voice ends, naturally or through Stop.
	Done() <-chan struct{}
}
