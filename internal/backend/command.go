package backend

import (
	"time"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// Redis channels.
const (
	// RendererChannel carries Commands for the remote renderer.
	RendererChannel = "ttsqueue:renderer"
	// RequestChannel carries inbound IncomingRequests.
	RequestChannel = "ttsqueue:requests"
	// ChatChannel carries inbound ChatMessages.
	ChatChannel = "ttsqueue:chat"
)

// Op names a renderer command.
type Op string

const (
	OpEnqueue  Op = "enqueue"
	OpSettings Op = "settings"
	OpEnabled  Op = "enabled"
	OpClear    Op = "clear"
	OpSkip     Op = "skip"
	OpRemove   Op = "remove"
)

// Command is one outbound message to the remote renderer.
type Command struct {
	Op        Op                   `json:"op"`
	ID        string               `json:"id,omitempty"`
	User      string               `json:"user,omitempty"`
	Message   string               `json:"message,omitempty"`
	Settings  *tts.ControlSettings `json:"settings,omitempty"`
	Enabled   *bool                `json:"enabled,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// IncomingRequest is a ready-made TTS request published by another service.
// Audio, when present, is base64 or a data URL.
type IncomingRequest struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Audio   string `json:"audio,omitempty"`
}

// ChatMessage is a raw chat line forwarded by a platform connector.
type ChatMessage struct {
	Platform    string `json:"platform"`
	Sender      string `json:"sender"`
	Content     string `json:"content"`
	Badges      string `json:"badges,omitempty"`
	Broadcaster bool   `json:"broadcaster,omitempty"`
	Moderator   bool   `json:"moderator,omitempty"`
	Subscriber  bool   `json:"subscriber,omitempty"`
}
