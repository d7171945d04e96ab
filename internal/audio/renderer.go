package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// Playback is the handle of one started request.
type Playback interface {
	// Stop halts the audio source or cancels the estimate timer. It returns
	// true only for the call that settled the playback; a settled playback
	// never invokes its completion callback afterwards.
	Stop() bool

	// Apply updates gain and rate of a playing Local voice. Remote
	// playbacks ignore it.
	Apply(s tts.ControlSettings)
}

// Renderer starts playbacks for queued requests.
type Renderer struct {
	output  Output
	clock   clock.Clock
	decode  func([]byte) (*Buffer, error)
	logger  *log.Logger
	onError func(error)
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithClock sets the clock used for Remote estimates.
func WithClock(c clock.Clock) RendererOption {
	return func(r *Renderer) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

// WithErrorHandler receives decode and playback failures.
func WithErrorHandler(fn func(error)) RendererOption {
	return func(r *Renderer) { r.onError = fn }
}

// WithDecoder replaces the payload decoder.
func WithDecoder(fn func([]byte) (*Buffer, error)) RendererOption {
	return func(r *Renderer) { r.decode = fn }
}

// NewRenderer creates a renderer playing Local requests on out. A nil out
// makes every Local request fail open.
func NewRenderer(out Output, opts ...RendererOption) *Renderer {
	r := &Renderer{
		output: out,
		clock:  clock.New(),
		decode: Decode,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "renderer")
	return r
}

// Start begins rendering req and returns immediately. onComplete is called
// at most once, always from another goroutine, when the playback ends on
// its own or fails. It is never called after Stop settled the playback.
func (r *Renderer) Start(req tts.Request, s tts.ControlSettings, onComplete func(id string)) Playback {
	switch m := tts.ModeOf(req).(type) {
	case tts.Local:
		return r.startLocal(req.ID, m.Payload, s, onComplete)
	case tts.Remote:
		return r.startRemote(req.ID, m.Estimated, onComplete)
	default:
		panic(fmt.Sprintf("unknown mode %T", m))
	}
}

type completion struct {
	id         string
	onComplete func(id string)
	settled    atomic.Bool
}

func (c *completion) settle() bool {
	return c.settled.CompareAndSwap(false, true)
}

func (c *completion) finish() {
	if c.settle() && c.onComplete != nil {
		c.onComplete(c.id)
	}
}

type remotePlayback struct {
	completion
	timer *clock.Timer
}

func (r *Renderer) startRemote(id string, estimated time.Duration, onComplete func(string)) Playback {
	p := &remotePlayback{completion: completion{id: id, onComplete: onComplete}}
	p.timer = r.clock.AfterFunc(estimated, p.finish)
	r.logger.Debug("remote playback started", "id", id, "estimated", estimated)
	return p
}

// Stop cancels the estimate. Audio the external renderer already started
// is not affected.
func (p *remotePlayback) Stop() bool {
	if !p.settle() {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}

func (p *remotePlayback) Apply(tts.ControlSettings) {}

type localPlayback struct {
	completion

	mu       sync.Mutex
	voice    Voice
	settings tts.ControlSettings
}

func (r *Renderer) startLocal(id string, payload []byte, s tts.ControlSettings, onComplete func(string)) Playback {
	p := &localPlayback{
		completion: completion{id: id, onComplete: onComplete},
		settings:   s,
	}
	go r.runLocal(p, payload)
	return p
}

func (r *Renderer) runLocal(p *localPlayback, payload []byte) {
	buf, err := r.decode(payload)
	if err != nil {
		r.fail(p, err)
		return
	}
	r.logger.Debug("decoded payload",
		"id", p.id,
		"size", humanize.Bytes(uint64(len(payload))),
		"duration", buf.Duration())

	p.mu.Lock()
	if p.settled.Load() {
		// stopped while decoding
		p.mu.Unlock()
		return
	}
	if r.output == nil {
		p.mu.Unlock()
		r.fail(p, ErrNoOutput)
		return
	}
	voice, err := r.output.Open(buf, ParamsFor(p.settings))
	if err != nil {
		p.mu.Unlock()
		r.fail(p, err)
		return
	}
	p.voice = voice
	p.mu.Unlock()

	<-voice.Done()
	p.finish()
}

// fail reports a decode or device error and completes the request so the
// queue keeps moving.
func (r *Renderer) fail(p *localPlayback, err error) {
	derr := &tts.DecodeError{RequestID: p.id, Cause: err}
	r.logger.Warn("local playback failed", "id", p.id, "err", err)
	if r.onError != nil {
		r.onError(derr)
	}
	p.finish()
}

func (p *localPlayback) Stop() bool {
	if !p.settle() {
		return false
	}
	p.mu.Lock()
	v := p.voice
	p.mu.Unlock()
	if v != nil {
		v.Stop()
	}
	return true
}

func (p *localPlayback) Apply(s tts.ControlSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
	if p.voice != nil {
		p.voice.SetGain(s.Gain())
		p.voice.SetRate(s.PlaybackRate())
	}
}
