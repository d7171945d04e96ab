package tts

import (
	"context"
)

// Collaborator is the external backend that owns the remote renderer and
// persists shared state. Every call is best-effort; callers log failures and
// keep local state authoritative.
type Collaborator interface {
	// EnqueueRemote asks the renderer to synthesize and speak a request.
	EnqueueRemote(ctx context.Context, id, user, message string) error

	// UpdateSettings mirrors the current control settings.
	UpdateSettings(ctx context.Context, s ControlSettings) error

	// SetEnabled mirrors the playback toggle.
	SetEnabled(ctx context.Context, enabled bool) error

	// ClearQueue drops everything the renderer still has queued.
	ClearQueue(ctx context.Context) error

	// Skip stops a request the renderer may be speaking.
	Skip(ctx context.Context, id string) error

	// Remove drops a request the renderer has not spoken yet.
	Remove(ctx context.Context, id string) error
}

// SettingsStore persists ControlSettings.
type SettingsStore interface {
	// Load returns stored settings. Missing fields come back as defaults;
	// on error the returned settings are still usable defaults.
	Load(ctx context.Context) (ControlSettings, error)

	// Save replaces the stored settings.
	Save(ctx context.Context, s ControlSettings) error
}

// Enqueuer accepts new requests.
type Enqueuer interface {
	Enqueue(user, message string, payload []byte) (Request, error)
}
