// Package settings persists listener control settings in a JSON file shared
// with the rest of the stream tooling.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// DefaultFileName is the settings file name inside the data directory.
const DefaultFileName = "tts_config.json"

// JSON keys owned by this store. Every other key in the file belongs to
// someone else and is preserved on save.
const (
	keyVolume  = "volume"
	keySpeed   = "speed"
	keyPitch   = "pitch"
	keyEnabled = "tts_enabled"
)

// FileStore implements tts.SettingsStore on top of a JSON document.
type FileStore struct {
	path   string
	logger *log.Logger

	mu sync.Mutex
}

var _ tts.SettingsStore = (*FileStore)(nil)

// NewFileStore returns a store for path. The file need not exist yet.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With("component", "settings"),
	}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the settings. Missing or invalid fields fall back to their
// defaults individually; a missing file yields defaults without error.
func (s *FileStore) Load(_ context.Context) (tts.ControlSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := tts.DefaultSettings()
	doc, err := s.read()
	if err != nil {
		return out, err
	}

	if v, ok := field[float64](doc, keyVolume); ok {
		if err := out.SetVolume(int(v)); err != nil {
			s.logger.Warn("ignoring stored volume", "err", err)
		}
	}
	if v, ok := field[float64](doc, keySpeed); ok {
		if err := out.SetSpeed(v); err != nil {
			s.logger.Warn("ignoring stored speed", "err", err)
		}
	}
	if v, ok := field[float64](doc, keyPitch); ok {
		if err := out.SetPitch(int(v)); err != nil {
			s.logger.Warn("ignoring stored pitch", "err", err)
		}
	}
	return out, nil
}

// Save writes the settings, keeping every other key in the file.
func (s *FileStore) Save(_ context.Context, settings tts.ControlSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.update(func(doc map[string]any) {
		doc[keyVolume] = settings.Volume
		doc[keySpeed] = settings.Speed
		doc[keyPitch] = settings.Pitch
	})
}

// LoadEnabled returns the stored playback toggle, if any.
func (s *FileStore) LoadEnabled() (enabled, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false, false
	}
	return field[bool](doc, keyEnabled)
}

// SaveEnabled persists the playback toggle.
func (s *FileStore) SaveEnabled(enabled bool) error {
	return s.update(func(doc map[string]any) {
		doc[keyEnabled] = enabled
	})
}

func (s *FileStore) update(fn func(map[string]any)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		// an unreadable document is replaced rather than blocking saves
		s.logger.Warn("rewriting unreadable settings file", "path", s.path, "err", err)
		doc = map[string]any{}
	}
	fn(doc)
	return s.write(doc)
}

func (s *FileStore) read() (map[string]any, error) {
	doc := map[string]any{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read settings: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]any{}, fmt.Errorf("parse settings: %w", err)
	}
	return doc, nil
}

// write replaces the file atomically.
func (s *FileStore) write(doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tts_config-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func field[T any](doc map[string]any, key string) (T, bool) {
	v, ok := doc[key].(T)
	return v, ok
}
