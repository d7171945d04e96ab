package tts_test

import (
	"context"
	"testing"

	"github.com/streamcore/ttsqueue/internal/backend"
	"github.com/streamcore/ttsqueue/internal/playback"
	"github.com/streamcore/ttsqueue/internal/queue"
	"github.com/streamcore/ttsqueue/internal/settings"
	"github.com/streamcore/ttsqueue/internal/tts"
)

// Compile-time interface compliance checks.
var (
	_ tts.Collaborator  = backend.Noop{}
	_ tts.Collaborator  = (*backend.Redis)(nil)
	_ tts.SettingsStore = (*settings.FileStore)(nil)
	_ tts.Enqueuer      = (*playback.Controller)(nil)
	_ tts.Enqueuer      = (*queue.Store)(nil)
)

func TestNoopCollaborator(t *testing.T) {
	ctx := context.Background()
	var c tts.Collaborator = backend.Noop{}

	calls := map[string]func() error{
		"EnqueueRemote":  func() error { return c.EnqueueRemote(ctx, "id", "ana", "hola") },
		"UpdateSettings": func() error { return c.UpdateSettings(ctx, tts.DefaultSettings()) },
		"SetEnabled":     func() error { return c.SetEnabled(ctx, false) },
		"ClearQueue":     func() error { return c.ClearQueue(ctx) },
		"Skip":           func() error { return c.Skip(ctx, "id") },
		"Remove":         func() error { return c.Remove(ctx, "id") },
	}
	for name, call := range calls {
		if err := call(); err != nil {
			t.Errorf("%s returned %v", name, err)
		}
	}
}
