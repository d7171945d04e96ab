package backend

import (
	"context"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// Noop is the collaborator used when no backend is configured.
type Noop struct{}

var _ tts.Collaborator = Noop{}

func (Noop) EnqueueRemote(context.Context, string, string, string) error { return nil }
func (Noop) UpdateSettings(context.Context, tts.ControlSettings) error   { return nil }
func (Noop) SetEnabled(context.Context, bool) error                      { return nil }
func (Noop) ClearQueue(context.Context) error                            { return nil }
func (Noop) Skip(context.Context, string) error                          { return nil }
func (Noop) Remove(context.Context, string) error                        { return nil }
