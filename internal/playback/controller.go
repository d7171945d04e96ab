package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"

	"github.com/streamcore/ttsqueue/internal/audio"
	"github.com/streamcore/ttsqueue/internal/backend"
	"github.com/streamcore/ttsqueue/internal/queue"
	"github.com/streamcore/ttsqueue/internal/tts"
)

// Renderer starts playbacks. onComplete must be invoked asynchronously.
type Renderer interface {
	Start(req tts.Request, s tts.ControlSettings, onComplete func(id string)) audio.Playback
}

// Config contains controller timing.
type Config struct {
	// AdvanceDelay separates the end of one request from the start of the next.
	AdvanceDelay time.Duration
	// NotifyTimeout bounds each outbound collaborator call.
	NotifyTimeout time.Duration
	// Enabled is the initial playback toggle.
	Enabled bool
}

// DefaultConfig returns a 200ms advance delay and a 5s notify timeout.
func DefaultConfig() Config {
	return Config{
		AdvanceDelay:  200 * time.Millisecond,
		NotifyTimeout: 5 * time.Second,
		Enabled:       true,
	}
}

// Controller owns the Idle/Playing state machine. Every transition runs
// under one mutex; renderer callbacks, timers and API calls all funnel
// through it. Observers run after it is released; collaborator calls are
// queued under it and delivered in order by a single goroutine.
type Controller struct {
	store    *queue.Store
	renderer Renderer
	backend  tts.Collaborator
	clock    clock.Clock
	logger   *log.Logger
	config   Config

	mu         sync.Mutex
	enabled    bool
	settings   tts.ControlSettings
	session    *session
	advance    *clock.Timer
	advanceSeq uint64
	seq        uint64
	closed     bool

	obsMu     sync.RWMutex
	obsNext   int
	observers map[int]func(Event)
	reporters map[int]func(error)

	outbox *outbox
}

// session tracks the request that currently holds playback.
type session struct {
	req      tts.Request
	playback audio.Playback
	settled  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for the advance delay.
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// WithCollaborator sets the external backend mirrored on every change.
func WithCollaborator(b tts.Collaborator) Option {
	return func(ctrl *Controller) { ctrl.backend = b }
}

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(ctrl *Controller) { ctrl.config = cfg }
}

// WithSettings sets the initial control settings.
func WithSettings(s tts.ControlSettings) Option {
	return func(ctrl *Controller) { ctrl.settings = s }
}

// New creates a controller over store.
func New(store *queue.Store, renderer Renderer, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		renderer:  renderer,
		backend:   backend.Noop{},
		clock:     clock.New(),
		logger:    log.Default(),
		config:    DefaultConfig(),
		settings:  tts.DefaultSettings(),
		observers: make(map[int]func(Event)),
		reporters: make(map[int]func(error)),
		outbox:    newOutbox(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.enabled = c.config.Enabled
	c.logger = c.logger.With("component", "playback")
	go c.outbox.run(c.deliver)
	return c
}

// Enqueue stores a new request and starts it if the controller is idle.
func (c *Controller) Enqueue(user, message string, payload []byte) (tts.Request, error) {
	var b batch
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return tts.Request{}, tts.ErrClosed
	}
	req, err := c.store.Enqueue(user, message, payload)
	if err != nil {
		c.mu.Unlock()
		return tts.Request{}, err
	}
	c.logger.Debug("request enqueued", "id", req.ID, "user", req.User, "mode", req.ModeName())
	c.emitLocked(&b, EventEnqueued, &req)
	c.tryStartLocked(&b)
	c.unlockAndDispatch(b)
	return req, nil
}

// Skip ends the active request early, or removes a pending one.
func (c *Controller) Skip(id string) error {
	var b batch
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return tts.ErrClosed
	}
	var err error
	if c.isActiveLocked(id) {
		c.stopActiveLocked(&b, EventSkipped)
	} else {
		err = c.removePendingLocked(&b, id)
	}
	c.unlockAndDispatch(b)
	return err
}

// Remove deletes a request. A playing request is stopped first.
func (c *Controller) Remove(id string) error {
	var b batch
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return tts.ErrClosed
	}
	var err error
	if c.isActiveLocked(id) {
		c.stopActiveLocked(&b, EventRemoved)
	} else {
		err = c.removePendingLocked(&b, id)
	}
	c.unlockAndDispatch(b)
	return err
}

// Clear stops the active request and drops everything queued.
func (c *Controller) Clear() int {
	var b batch
	c.mu.Lock()
	if s := c.session; s != nil {
		s.settled = true
		s.playback.Stop()
		c.session = nil
	}
	c.cancelAdvanceLocked()
	n := c.store.Clear()
	c.logger.Info("queue cleared", "removed", n)
	c.emitLocked(&b, EventCleared, nil)
	b.notify("clear", func(ctx context.Context) error {
		return c.backend.ClearQueue(ctx)
	})
	c.unlockAndDispatch(b)
	return n
}

// SetEnabled toggles playback. Disabling never interrupts the active
// request; it only prevents the next one from starting.
func (c *Controller) SetEnabled(enabled bool) error {
	var b batch
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return tts.ErrClosed
	}
	changed := c.enabled != enabled
	c.enabled = enabled
	if changed {
		c.logger.Info("playback toggled", "enabled", enabled)
		c.emitLocked(&b, EventEnabled, nil)
	}
	b.notify("set-enabled", func(ctx context.Context) error {
		return c.backend.SetEnabled(ctx, enabled)
	})
	if enabled {
		c.tryStartLocked(&b)
	}
	c.unlockAndDispatch(b)
	return nil
}

// UpdateSettings applies a partial settings change. The active Local
// playback picks it up without interruption.
func (c *Controller) UpdateSettings(p tts.SettingsPatch) (tts.ControlSettings, error) {
	var b batch
	c.mu.Lock()
	next, err := c.settings.Apply(p)
	if err != nil {
		cur := c.settings
		c.mu.Unlock()
		return cur, err
	}
	c.applySettingsLocked(&b, next)
	c.unlockAndDispatch(b)
	return next, nil
}

// ApplySettings replaces all settings at once.
func (c *Controller) ApplySettings(s tts.ControlSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	var b batch
	c.mu.Lock()
	c.applySettingsLocked(&b, s)
	c.unlockAndDispatch(b)
	return nil
}

// Settings returns the current control settings.
func (c *Controller) Settings() tts.ControlSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Enabled reports the playback toggle.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// State returns Idle or Playing.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Status returns a consistent view of the controller and queue.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:    c.stateLocked(),
		Enabled:  c.enabled,
		Settings: c.settings,
		Queue:    c.store.Snapshot(),
	}
	if c.session != nil {
		st.ActiveID = c.session.req.ID
	}
	return st
}

// Snapshot returns the queue in order.
func (c *Controller) Snapshot() []tts.Request {
	return c.store.Snapshot()
}

// Subscribe registers an observer for events. Observers run outside the
// controller lock and may call back into the controller.
func (c *Controller) Subscribe(fn func(Event)) (cancel func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.obsNext
	c.obsNext++
	c.observers[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

// OnError registers a receiver for non-fatal failures: decode errors and
// collaborator communication errors.
func (c *Controller) OnError(fn func(error)) (cancel func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.obsNext
	c.obsNext++
	c.reporters[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.reporters, id)
	}
}

// Report hands err to every error receiver.
func (c *Controller) Report(err error) {
	if err == nil {
		return
	}
	c.obsMu.RLock()
	fns := make([]func(error), 0, len(c.reporters))
	for _, fn := range c.reporters {
		fns = append(fns, fn)
	}
	c.obsMu.RUnlock()

	for _, fn := range fns {
		fn(err)
	}
}

// Close stops playback and refuses further requests. It waits until every
// queued collaborator call has been delivered.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if s := c.session; s != nil {
		s.settled = true
		s.playback.Stop()
		c.session = nil
	}
	c.cancelAdvanceLocked()
	c.mu.Unlock()

	c.outbox.close()
	return nil
}

// complete is the renderer callback for natural end, estimate expiry and
// decode failure.
func (c *Controller) complete(id string) {
	var b batch
	c.mu.Lock()
	s := c.session
	if s == nil || s.req.ID != id || s.settled {
		c.logger.Debug("discarding stale completion", "id", id)
		c.mu.Unlock()
		return
	}
	c.finishLocked(&b, EventCompleted)
	c.unlockAndDispatch(b)
}

// tryStartLocked moves Idle to Playing when a pending request exists,
// playback is enabled, and nothing else is playing.
func (c *Controller) tryStartLocked(b *batch) {
	if c.closed || !c.enabled || c.session != nil {
		return
	}
	next, ok := c.store.PeekNextPending()
	if !ok {
		return
	}
	req, err := c.store.MarkPlaying(next.ID)
	if err != nil {
		c.logger.Error("cannot start request", "id", next.ID, "err", err)
		return
	}

	s := &session{req: req}
	c.session = s
	s.playback = c.renderer.Start(req, c.settings, c.complete)

	c.logger.Info("playing", "id", req.ID, "user", req.User, "mode", req.ModeName())
	c.emitLocked(b, EventStarted, &req)

	if _, remote := tts.ModeOf(req).(tts.Remote); remote {
		b.notify("enqueue-remote", func(ctx context.Context) error {
			return c.backend.EnqueueRemote(ctx, req.ID, req.User, req.Message)
		})
	}
}

// stopActiveLocked forces the active request through the normal
// completion path exactly once.
func (c *Controller) stopActiveLocked(b *batch, ev EventType) {
	s := c.session
	id := s.req.ID
	// Stop reports false when the playback already ended on its own; that
	// completion is still waiting on the lock and will be discarded.
	s.playback.Stop()
	c.finishLocked(b, ev)
	b.notify("skip", func(ctx context.Context) error {
		return c.backend.Skip(ctx, id)
	})
}

func (c *Controller) removePendingLocked(b *batch, id string) error {
	req, ok := c.store.Remove(id)
	if !ok {
		return tts.ErrNotFound
	}
	c.logger.Debug("request removed", "id", id)
	c.emitLocked(b, EventRemoved, &req)
	b.notify("remove", func(ctx context.Context) error {
		return c.backend.Remove(ctx, id)
	})
	return nil
}

// finishLocked destroys the session, removes its request and schedules the
// next start after the advance delay.
func (c *Controller) finishLocked(b *batch, ev EventType) {
	s := c.session
	s.settled = true
	c.session = nil
	c.store.Remove(s.req.ID)

	c.logger.Debug("request finished", "id", s.req.ID, "reason", ev)
	req := s.req
	c.emitLocked(b, ev, &req)
	c.scheduleAdvanceLocked()
}

func (c *Controller) scheduleAdvanceLocked() {
	if c.closed {
		return
	}
	c.cancelAdvanceLocked()
	seq := c.advanceSeq
	c.advance = c.clock.AfterFunc(c.config.AdvanceDelay, func() {
		c.advanceTick(seq)
	})
}

func (c *Controller) cancelAdvanceLocked() {
	c.advanceSeq++
	if c.advance != nil {
		c.advance.Stop()
		c.advance = nil
	}
}

func (c *Controller) advanceTick(seq uint64) {
	var b batch
	c.mu.Lock()
	if seq != c.advanceSeq {
		c.mu.Unlock()
		return
	}
	c.advance = nil
	c.tryStartLocked(&b)
	c.unlockAndDispatch(b)
}

func (c *Controller) applySettingsLocked(b *batch, s tts.ControlSettings) {
	c.settings = s
	if c.session != nil {
		c.session.playback.Apply(s)
	}
	c.logger.Debug("settings applied", "volume", s.Volume, "speed", s.Speed, "pitch", s.Pitch)
	c.emitLocked(b, EventSettings, nil)
}

func (c *Controller) isActiveLocked(id string) bool {
	return c.session != nil && c.session.req.ID == id
}

func (c *Controller) stateLocked() State {
	if c.session != nil {
		return Playing
	}
	return Idle
}

func (c *Controller) emitLocked(b *batch, t EventType, req *tts.Request) {
	c.seq++
	b.events = append(b.events, Event{
		Seq:      c.seq,
		Type:     t,
		Request:  req,
		State:    c.stateLocked(),
		Enabled:  c.enabled,
		Settings: c.settings,
		At:       c.clock.Now(),
	})
}

// unlockAndDispatch queues the batch's collaborator calls while c.mu is
// still held, so they reach the collaborator in transition order, then
// releases the lock and delivers events to observers.
func (c *Controller) unlockAndDispatch(b batch) {
	c.outbox.push(b.notices...)
	c.mu.Unlock()

	if len(b.events) == 0 {
		return
	}
	c.obsMu.RLock()
	fns := make([]func(Event), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.RUnlock()

	for _, ev := range b.events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// mirrorSettings queues the current settings for the collaborator.
func (c *Controller) mirrorSettings() {
	var b batch
	c.mu.Lock()
	settings := c.settings
	b.notify("update-settings", func(ctx context.Context) error {
		return c.backend.UpdateSettings(ctx, settings)
	})
	c.unlockAndDispatch(b)
}

// deliver runs one collaborator call on the outbox goroutine. Failures are
// logged and reported; local state is never rolled back.
func (c *Controller) deliver(n notification) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.NotifyTimeout)
	defer cancel()

	err := n.call(ctx)
	if err == nil {
		return
	}
	var cerr *tts.CommunicationError
	if !errors.As(err, &cerr) {
		err = &tts.CommunicationError{Op: n.op, Cause: err}
	}
	c.logger.Warn("collaborator call failed", "op", n.op, "err", err)
	c.Report(err)
}
