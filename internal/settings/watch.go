package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 300 * time.Millisecond

// Watch calls fn with freshly loaded settings whenever the file changes,
// until ctx is canceled. The directory is watched so that atomic replaces
// are seen.
func (s *FileStore) Watch(ctx context.Context, debounce time.Duration, fn func(tts.ControlSettings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Info("watching settings file", "path", s.path)

	target := filepath.Clean(s.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				loaded, err := s.Load(ctx)
				if err != nil {
					s.logger.Error("settings reload failed", "err", err)
					return
				}
				fn(loaded)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("settings watcher error", "err", err)
		}
	}
}
