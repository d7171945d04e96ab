package logging

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Synthesis tracks one synthesis call of the remote renderer.
type Synthesis struct {
	Engine     string
	TextLength int
	Start      time.Time
	Duration   time.Duration
	AudioBytes int
	CacheHit   bool
	Err        error
}

// SynthesisLog keeps running totals of synthesis calls.
type SynthesisLog struct {
	logger *log.Logger

	mu     sync.Mutex
	count  int
	hits   int
	errors int
	bytes  int
	total  time.Duration
}

// NewSynthesisLog logs finished synthesis calls to logger.
func NewSynthesisLog(logger *log.Logger) *SynthesisLog {
	return &SynthesisLog{logger: logger}
}

// Begin starts tracking a synthesis call.
func (l *SynthesisLog) Begin(engine, text string) *Synthesis {
	return &Synthesis{Engine: engine, TextLength: len(text), Start: time.Now()}
}

// End records s and logs it.
func (l *SynthesisLog) End(s *Synthesis, audioBytes int, cacheHit bool, err error) {
	s.Duration = time.Since(s.Start)
	s.AudioBytes = audioBytes
	s.CacheHit = cacheHit
	s.Err = err

	l.mu.Lock()
	l.count++
	l.total += s.Duration
	l.bytes += audioBytes
	if cacheHit {
		l.hits++
	}
	if err != nil {
		l.errors++
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("synthesis failed", "engine", s.Engine, "duration", s.Duration, "err", err)
		return
	}
	l.logger.Debug("synthesis completed",
		"engine", s.Engine,
		"textLength", s.TextLength,
		"audio", humanize.Bytes(uint64(audioBytes)),
		"duration", s.Duration,
		"cacheHit", cacheHit)
}

// Summary returns a one-line digest of all calls so far.
func (l *SynthesisLog) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return "no synthesis calls"
	}
	return fmt.Sprintf("%d calls, avg %v, %s audio, %.1f%% cache hits, %d errors",
		l.count,
		l.total/time.Duration(l.count),
		humanize.Bytes(uint64(l.bytes)),
		float64(l.hits)/float64(l.count)*100,
		l.errors)
}
