package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/streamcore/ttsqueue/internal/cache"
	"github.com/streamcore/ttsqueue/internal/logging"
)

// SampleRate is the rate of the PCM returned by Synthesize.
const SampleRate = 44100

const (
	maxTextSize = 5000
	maxMP3Size  = 50 << 20
	maxPCMSize  = 40 << 20

	synthTimeout   = 30 * time.Second
	convertTimeout = 15 * time.Second
)

// ErrEmptyText is returned for blank input.
var ErrEmptyText = errors.New("text cannot be empty")

// Runner executes an external program with stdin and returns its stdout.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// GTTSConfig configures a GTTSEngine.
type GTTSConfig struct {
	// Language is a gTTS language code. Defaults to "es".
	Language string
	// RequestsPerMinute bounds calls to Google. Defaults to 50.
	RequestsPerMinute int
	GTTSPath          string
	FFmpegPath        string
	// Cache is optional.
	Cache *cache.Manager
	// Log is optional.
	Log *logging.SynthesisLog
	// Runner overrides process execution, mostly for tests.
	Runner Runner
}

// GTTSEngine turns text into mono signed 16-bit PCM at SampleRate using
// gtts-cli for speech and ffmpeg for resampling.
//
// Speed is applied the way a turntable would: the audio is relabelled at
// SampleRate*speed and resampled back, so pitch moves with tempo.
type GTTSEngine struct {
	language string
	gtts     string
	ffmpeg   string
	limiter  *rate.Limiter
	cache    *cache.Manager
	log      *logging.SynthesisLog
	run      Runner
}

// NewGTTSEngine returns an engine. It does not check that the binaries exist;
// see Validate.
func NewGTTSEngine(cfg GTTSConfig) *GTTSEngine {
	if cfg.Language == "" {
		cfg.Language = "es"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.GTTSPath == "" {
		cfg.GTTSPath = "gtts-cli"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner
	}
	return &GTTSEngine{
		language: cfg.Language,
		gtts:     cfg.GTTSPath,
		ffmpeg:   cfg.FFmpegPath,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		cache:    cfg.Cache,
		log:      cfg.Log,
		run:      cfg.Runner,
	}
}

// Name identifies the engine in logs.
func (e *GTTSEngine) Name() string { return "gtts" }

// Synthesize converts text to PCM at the given speed multiplier.
func (e *GTTSEngine) Synthesize(ctx context.Context, text string, speed float64) (pcm []byte, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > maxTextSize {
		return nil, fmt.Errorf("text too long: %d characters (max %d)", len(text), maxTextSize)
	}
	if speed <= 0 {
		speed = 1
	}

	var rec *logging.Synthesis
	if e.log != nil {
		rec = e.log.Begin(e.Name(), text)
	}
	hit := false
	defer func() {
		if rec != nil {
			e.log.End(rec, len(pcm), hit, err)
		}
	}()

	key := cache.GenerateKey(text, e.language, speed)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			hit = true
			return cached, nil
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	mp3, err := e.synthesizeMP3(ctx, text)
	if err != nil {
		return nil, err
	}
	pcm, err = e.convert(ctx, mp3, speed)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		_ = e.cache.Put(key, pcm)
	}
	return pcm, nil
}

func (e *GTTSEngine) synthesizeMP3(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, synthTimeout)
	defer cancel()

	// text is read from stdin so it never looks like a flag
	out, err := e.run(ctx, e.gtts, []string{"-l", e.language, "-f", "-", "-o", "-"}, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("gtts-cli: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("gtts-cli produced no audio")
	}
	if len(out) > maxMP3Size {
		return nil, fmt.Errorf("gtts-cli output too large: %d bytes", len(out))
	}
	return out, nil
}

func (e *GTTSEngine) convert(ctx context.Context, mp3 []byte, speed float64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	out, err := e.run(ctx, e.ffmpeg, ffmpegArgs(speed), mp3)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("ffmpeg produced no audio")
	}
	if len(out) > maxPCMSize {
		return nil, fmt.Errorf("ffmpeg output too large: %d bytes", len(out))
	}
	return out, nil
}

func ffmpegArgs(speed float64) []string {
	relabel := strconv.Itoa(int(math.Round(SampleRate * speed)))
	return []string{
		"-v", "error",
		"-i", "pipe:0",
		"-af", "asetrate=" + relabel + ",aresample=" + strconv.Itoa(SampleRate),
		"-f", "s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"pipe:1",
	}
}

// Validate checks that both binaries are on PATH.
func (e *GTTSEngine) Validate() error {
	if _, err := exec.LookPath(e.gtts); err != nil {
		return fmt.Errorf("gtts-cli not found (pip install gtts): %w", err)
	}
	if _, err := exec.LookPath(e.ffmpeg); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	// interrupt first, kill if it lingers
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
