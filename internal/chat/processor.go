// Package chat turns chat commands into TTS requests.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// Defaults for Config.
const (
	DefaultCommand  = "!decir"
	DefaultTemplate = "%s dice %s"

	cooldownEntries = 1024
)

// Outcome reports what Handle did with a message.
type Outcome int

const (
	Ignored Outcome = iota
	Denied
	Filtered
	Throttled
	Enqueued
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Denied:
		return "denied"
	case Filtered:
		return "filtered"
	case Throttled:
		return "throttled"
	case Enqueued:
		return "enqueued"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config controls the TTS chat command.
type Config struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Command      string        `json:"command" yaml:"command"`
	Permission   Permission    `json:"tts_permission" yaml:"permission"`
	BannedWords  []string      `json:"banned_words" yaml:"banned_words"`
	Template     string        `json:"template" yaml:"template"`
	UserCooldown time.Duration `json:"user_cooldown" yaml:"user_cooldown"`
}

// DefaultConfig returns an open command with no filtering.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Command:    DefaultCommand,
		Permission: PermissionAll,
		Template:   DefaultTemplate,
	}
}

// Message is one chat line with the sender's roles already resolved.
type Message struct {
	Platform string
	Sender   string
	Content  string
	Roles    Roles
}

// Processor applies the command gate and enqueues accepted messages.
type Processor struct {
	queue  tts.Enqueuer
	logger *log.Logger
	now    func() time.Time

	mu        sync.RWMutex
	cfg       Config
	banned    []string
	cooldowns *lru.Cache[string, *rate.Limiter]
}

// Option configures a Processor.
type Option func(*Processor)

// WithNow overrides the time source used for cooldowns.
func WithNow(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// NewProcessor returns a processor enqueueing into queue.
func NewProcessor(queue tts.Enqueuer, cfg Config, logger *log.Logger, opts ...Option) *Processor {
	cooldowns, _ := lru.New[string, *rate.Limiter](cooldownEntries)
	p := &Processor{
		queue:     queue,
		logger:    logger.With("component", "chat"),
		now:       time.Now,
		cooldowns: cooldowns,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.SetConfig(cfg)
	return p
}

// Config returns the active configuration.
func (p *Processor) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetConfig replaces the configuration. Cooldown state is reset.
func (p *Processor) SetConfig(cfg Config) {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = DefaultCommand
	}
	if !strings.Contains(cfg.Template, "%s") {
		cfg.Template = DefaultTemplate
	}

	banned := make([]string, 0, len(cfg.BannedWords))
	for _, w := range cfg.BannedWords {
		if w = strings.TrimSpace(w); w != "" {
			banned = append(banned, fold(w))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.banned = banned
	p.cooldowns.Purge()
}

// Handle runs msg through the gate. Only enqueue failures are errors.
func (p *Processor) Handle(_ context.Context, msg Message) (Outcome, error) {
	p.mu.RLock()
	cfg := p.cfg
	banned := p.banned
	p.mu.RUnlock()

	if !cfg.Enabled {
		return Ignored, nil
	}

	content := strings.TrimSpace(msg.Content)
	name, rest, _ := strings.Cut(content, " ")
	if !strings.EqualFold(name, cfg.Command) {
		return Ignored, nil
	}
	text := strings.TrimSpace(rest)
	if text == "" {
		return Ignored, nil
	}

	if !cfg.Permission.Allows(msg.Roles) {
		p.logger.Debug("command denied", "sender", msg.Sender, "permission", cfg.Permission)
		return Denied, nil
	}

	spoken := fmt.Sprintf(cfg.Template, msg.Sender, text)
	folded := fold(spoken)
	for _, w := range banned {
		if strings.Contains(folded, w) {
			p.logger.Info("message blocked by filter", "sender", msg.Sender)
			return Filtered, nil
		}
	}

	if !p.allow(cfg.UserCooldown, msg.Platform, msg.Sender) {
		p.logger.Debug("sender on cooldown", "sender", msg.Sender)
		return Throttled, nil
	}

	req, err := p.queue.Enqueue(msg.Sender, spoken, nil)
	if err != nil {
		return Ignored, fmt.Errorf("enqueue chat message: %w", err)
	}
	p.logger.Info("chat message queued", "id", req.ID, "sender", msg.Sender, "platform", msg.Platform)
	return Enqueued, nil
}

func (p *Processor) allow(cooldown time.Duration, platform, sender string) bool {
	if cooldown <= 0 {
		return true
	}
	key := platform + "/" + fold(sender)

	p.mu.Lock()
	lim, ok := p.cooldowns.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Every(cooldown), 1)
		p.cooldowns.Add(key, lim)
	}
	p.mu.Unlock()

	return lim.AllowN(p.now(), 1)
}

// fold applies Unicode case folding. Casers are not safe for concurrent use,
// so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
