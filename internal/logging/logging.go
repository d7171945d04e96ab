// Package logging configures charmbracelet/log for the daemon and its workers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Options selects where and how verbosely to log.
type Options struct {
	Debug bool
	// File, when set, receives all log output instead of stderr.
	File string
}

// Setup configures the default logger and returns a closer for the log file.
func Setup(opts Options) (func() error, error) {
	level := log.InfoLevel
	if opts.Debug {
		level = log.DebugLevel
	}

	if opts.File == "" {
		log.SetDefault(New(os.Stderr, level))
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetDefault(New(f, level))
	log.Debug("logging initialized", "path", opts.File, "level", level)
	return f.Close, nil
}

// New returns a timestamped logger writing to w.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
