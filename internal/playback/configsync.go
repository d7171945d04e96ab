package playback

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// ConfigSync keeps control settings consistent between the controller, the
// settings store and the external collaborator.
type ConfigSync struct {
	controller *Controller
	store      tts.SettingsStore
	logger     *log.Logger
}

// NewConfigSync ties controller to store.
func NewConfigSync(controller *Controller, store tts.SettingsStore, logger *log.Logger) *ConfigSync {
	return &ConfigSync{
		controller: controller,
		store:      store,
		logger:     logger.With("component", "configsync"),
	}
}

// Load reads stored settings and applies them. A failed load falls back to
// defaults and is never fatal.
func (s *ConfigSync) Load(ctx context.Context) tts.ControlSettings {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("could not load settings, using defaults", "err", err)
	}
	if verr := loaded.Validate(); verr != nil {
		s.logger.Warn("stored settings invalid, using defaults", "err", verr)
		loaded = tts.DefaultSettings()
	}

	if err := s.controller.ApplySettings(loaded); err != nil {
		s.logger.Error("could not apply loaded settings", "err", err)
		return s.controller.Settings()
	}
	s.mirror()
	s.logger.Info("settings loaded", "volume", loaded.Volume, "speed", loaded.DisplaySpeed(), "pitch", loaded.Pitch)
	return loaded
}

// Apply validates and applies a partial change, then mirrors it to the
// collaborator. Invalid values are rejected and nothing changes.
func (s *ConfigSync) Apply(_ context.Context, p tts.SettingsPatch) (tts.ControlSettings, error) {
	next, err := s.controller.UpdateSettings(p)
	if err != nil {
		return next, err
	}
	s.mirror()
	return next, nil
}

// Reload applies settings observed from an external edit of the store.
func (s *ConfigSync) Reload(settings tts.ControlSettings) error {
	if settings == s.controller.Settings() {
		return nil
	}
	if err := s.controller.ApplySettings(settings); err != nil {
		return err
	}
	s.mirror()
	s.logger.Info("settings reloaded", "volume", settings.Volume, "speed", settings.DisplaySpeed(), "pitch", settings.Pitch)
	return nil
}

// Save persists the current settings. Errors are returned to the caller,
// who may simply retry.
func (s *ConfigSync) Save(ctx context.Context) error {
	current := s.controller.Settings()
	if err := s.store.Save(ctx, current); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.logger.Debug("settings saved")
	return nil
}

// mirror forwards the controller's settings to the collaborator. The value
// is read when the call is queued, so the last mirror always carries the
// latest settings.
func (s *ConfigSync) mirror() {
	s.controller.mirrorSettings()
}
