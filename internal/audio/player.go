package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OutputConfig contains configuration for the oto output.
type OutputConfig struct {
	SampleRate   int           // 44100 or 48000 Hz only
	BufferSize   int           // bytes buffered by the device
	PollInterval time.Duration // how often to check for the end of a voice
}

// DefaultOutputConfig returns the default output configuration.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		SampleRate:   44100,
		BufferSize:   4096,
		PollInterval: 10 * time.Millisecond,
	}
}

// OtoOutput plays voices through a single shared oto context. oto allows
// one context per process, so create one OtoOutput and reuse it.
type OtoOutput struct {
	context      *oto.Context
	sampleRate   int
	pollInterval time.Duration
}

// NewOtoOutput opens the audio device.
func NewOtoOutput(config OutputConfig) (*OtoOutput, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*2),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoOutput, err)
	}

	// Wait for context to be ready
	<-readyChan

	return &OtoOutput{
		context:      ctx,
		sampleRate:   config.SampleRate,
		pollInterval: config.PollInterval,
	}, nil
}

func validateConfig(config OutputConfig) error {
	// oto only supports these sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	if config.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// Open starts a voice for buf.
func (o *OtoOutput) Open(buf *Buffer, p Params) (Voice, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, errNoSamples
	}

	stream := newRateStream(buf, o.sampleRate, p.Rate)
	player := o.context.NewPlayer(stream)
	if player == nil {
		return nil, errors.New("failed to create oto player")
	}

	v := &otoVoice{
		player: player,
		stream: stream,
		done:   make(chan struct{}),
	}
	v.SetGain(p.Gain)
	player.Play()

	go v.watch(o.pollInterval)
	return v, nil
}

type otoVoice struct {
	player *oto.Player
	stream *rateStream // kept alive while playing

	mu      sync.Mutex
	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func (v *otoVoice) SetGain(gain float64) {
	gain = math.Max(0, math.Min(1, gain))
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.stopped.Load() {
		v.player.SetVolume(gain)
	}
}

func (v *otoVoice) SetRate(rate float64) {
	v.stream.SetRate(rate)
}

func (v *otoVoice) Stop() {
	if v.stopped.Swap(true) {
		return
	}
	v.mu.Lock()
	v.player.Pause()
	v.mu.Unlock()
	v.finish()
}

func (v *otoVoice) Done() <-chan struct{} {
	return v.done
}

// watch polls the player until it drains the stream.
func (v *otoVoice) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-v.done:
			return
		case <-ticker.C:
			if v.stopped.Load() {
				return
			}
			if !v.player.IsPlaying() {
				v.finish()
				return
			}
		}
	}
}

func (v *otoVoice) finish() {
	v.once.Do(func() {
		v.mu.Lock()
		_ = v.player.Close()
		v.mu.Unlock()
		close(v.done)
	})
}
