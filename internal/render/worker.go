// Package render speaks remote requests: it follows the controller's renderer
// commands, synthesizes each message and plays it on a local output.
package render

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/streamcore/ttsqueue/internal/audio"
	"github.com/streamcore/ttsqueue/internal/backend"
	"github.com/streamcore/ttsqueue/internal/tts"
)

// Synthesizer produces mono s16le PCM at SampleRate. Speed is baked in.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)
}

type item struct {
	id      string
	user    string
	message string
}

type current struct {
	id     string
	cancel context.CancelFunc
	voice  audio.Voice
}

// Worker is the stand-in for the external renderer.
type Worker struct {
	out        audio.Output
	synth      Synthesizer
	sampleRate int
	logger     *log.Logger

	mu       sync.Mutex
	queue    []item
	enabled  bool
	settings tts.ControlSettings
	current  *current

	wake chan struct{}
}

// NewWorker returns an enabled worker with default settings.
func NewWorker(out audio.Output, synth Synthesizer, sampleRate int, logger *log.Logger) *Worker {
	return &Worker{
		out:        out,
		synth:      synth,
		sampleRate: sampleRate,
		logger:     logger.With("component", "render"),
		enabled:    true,
		settings:   tts.DefaultSettings(),
		wake:       make(chan struct{}, 1),
	}
}

// Handle applies one renderer command.
func (w *Worker) Handle(_ context.Context, cmd backend.Command) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch cmd.Op {
	case backend.OpEnqueue:
		w.queue = append(w.queue, item{id: cmd.ID, user: cmd.User, message: cmd.Message})
		w.logger.Debug("queued", "id", cmd.ID, "pending", len(w.queue))
		w.signal()

	case backend.OpSettings:
		if cmd.Settings == nil {
			return
		}
		if err := cmd.Settings.Validate(); err != nil {
			w.logger.Warn("ignoring invalid settings", "err", err)
			return
		}
		w.settings = *cmd.Settings
		if w.current != nil && w.current.voice != nil {
			p := voiceParams(w.settings)
			w.current.voice.SetGain(p.Gain)
			w.current.voice.SetRate(p.Rate)
		}

	case backend.OpEnabled:
		if cmd.Enabled == nil {
			return
		}
		w.enabled = *cmd.Enabled
		if w.enabled {
			w.signal()
		}

	case backend.OpClear:
		w.logger.Info("clearing", "dropped", len(w.queue))
		w.queue = nil
		w.stopCurrentLocked()

	case backend.OpSkip, backend.OpRemove:
		if w.current != nil && w.current.id == cmd.ID {
			w.stopCurrentLocked()
			return
		}
		for i, it := range w.queue {
			if it.id == cmd.ID {
				w.queue = append(w.queue[:i], w.queue[i+1:]...)
				return
			}
		}

	default:
		w.logger.Warn("unknown command", "op", cmd.Op)
	}
}

// Pending returns the ids waiting to be spoken.
func (w *Worker) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, len(w.queue))
	for i, it := range w.queue {
		ids[i] = it.id
	}
	return ids
}

// Current returns the id being synthesized or spoken, if any.
func (w *Worker) Current() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return "", false
	}
	return w.current.id, true
}

// Run speaks queued items one at a time until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		it, settings, itemCtx, ok := w.next(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				w.mu.Lock()
				w.stopCurrentLocked()
				w.mu.Unlock()
				return nil
			case <-w.wake:
				continue
			}
		}
		w.speak(itemCtx, it, settings)
	}
}

func (w *Worker) next(ctx context.Context) (item, tts.ControlSettings, context.Context, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx.Err() != nil || !w.enabled || w.current != nil || len(w.queue) == 0 {
		return item{}, tts.ControlSettings{}, nil, false
	}
	it := w.queue[0]
	w.queue = w.queue[1:]
	itemCtx, cancel := context.WithCancel(ctx)
	w.current = &current{id: it.id, cancel: cancel}
	return it, w.settings, itemCtx, true
}

func (w *Worker) speak(ctx context.Context, it item, settings tts.ControlSettings) {
	defer w.finish(it.id)

	pcm, err := w.synth.Synthesize(ctx, it.message, settings.Speed)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("synthesis failed, skipping", "id", it.id, "err", err)
		}
		return
	}
	buf, err := audio.FromPCM16(pcm, w.sampleRate)
	if err != nil {
		w.logger.Error("unusable audio, skipping", "id", it.id, "err", err)
		return
	}

	w.mu.Lock()
	if ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	// settings may have changed during synthesis
	voice, err := w.out.Open(buf, voiceParams(w.settings))
	if err != nil {
		w.mu.Unlock()
		w.logger.Error("could not open voice", "id", it.id, "err", err)
		return
	}
	w.current.voice = voice
	w.mu.Unlock()

	w.logger.Info("speaking", "id", it.id, "user", it.user, "length", buf.Duration(), "size", humanize.IBytes(uint64(len(pcm))))
	select {
	case <-voice.Done():
	case <-ctx.Done():
		voice.Stop()
		<-voice.Done()
	}
}

func (w *Worker) finish(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil && w.current.id == id {
		w.current.cancel()
		w.current = nil
	}
	w.signal()
}

func (w *Worker) stopCurrentLocked() {
	if w.current == nil {
		return
	}
	w.current.cancel()
	if w.current.voice != nil {
		w.current.voice.Stop()
	}
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// voiceParams keeps speed out of the voice rate because synthesis already
// applied it; only pitch detunes the voice.
func voiceParams(s tts.ControlSettings) audio.Params {
	return audio.Params{Gain: s.Gain(), Rate: tts.DetuneRatio(s.DetuneCents())}
}
