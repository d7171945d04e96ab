package tts

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultUser is shown when a request arrives without a sender.
const DefaultUser = "Anon"

// Remote completion estimate: a fixed lead plus a per-character cost.
const (
	RemoteBaseDuration    = 1000 * time.Millisecond
	RemotePerCharDuration = 100 * time.Millisecond
)

// Status is the lifecycle position of a queued request.
type Status string

const (
	// StatusPending means the request waits for its turn.
	StatusPending Status = "pending"

	// StatusPlaying means the request holds playback.
	StatusPlaying Status = "playing"
)

// Request is a single TTS notification.
type Request struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	Message    string    `json:"message"`
	Payload    []byte    `json:"-"`
	Status     Status    `json:"status"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest builds a pending request with a fresh id. A blank user becomes
// DefaultUser.
func NewRequest(user, message string, payload []byte, now time.Time) Request {
	user = strings.TrimSpace(user)
	if user == "" {
		user = DefaultUser
	}
	return Request{
		ID:         NewID(),
		User:       user,
		Message:    message,
		Payload:    payload,
		Status:     StatusPending,
		EnqueuedAt: now,
	}
}

// HasPayload reports whether the request carries embedded audio.
func (r Request) HasPayload() bool {
	return len(r.Payload) > 0
}

// ModeName is the mode name used on the wire and in logs.
func (r Request) ModeName() string {
	return ModeOf(r).Name()
}

// Mode selects how a request is rendered. It is either Local or Remote.
type Mode interface {
	Name() string
	mode()
}

// Local plays the embedded payload in-process.
type Local struct {
	Payload []byte
}

// Remote leaves synthesis to an external renderer; completion is estimated.
type Remote struct {
	Estimated time.Duration
}

func (Local) Name() string  { return "local" }
func (Remote) Name() string { return "remote" }
func (Local) mode()         {}
func (Remote) mode()        {}

// ModeOf derives the rendering mode of r.
func ModeOf(r Request) Mode {
	if r.HasPayload() {
		return Local{Payload: r.Payload}
	}
	return Remote{Estimated: EstimateRemoteDuration(r.Message)}
}

// EstimateRemoteDuration approximates how long an external renderer takes to
// speak message. It is not derived from the real audio.
func EstimateRemoteDuration(message string) time.Duration {
	return RemoteBaseDuration + time.Duration(utf8.RuneCountInString(message))*RemotePerCharDuration
}

// NewID returns a time-ordered request id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
