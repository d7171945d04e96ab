package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// State is the controller's playback state.
type State int

const (
	// Idle means no request holds playback.
	Idle State = iota
	// Playing means exactly one request is being rendered.
	Playing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "playing":
		*s = Playing
	default:
		return fmt.Errorf("unknown playback state %q", text)
	}
	return nil
}

// EventType names a controller event.
type EventType string

const (
	EventEnqueued  EventType = "enqueued"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventSkipped   EventType = "skipped"
	EventRemoved   EventType = "removed"
	EventCleared   EventType = "cleared"
	EventEnabled   EventType = "enabled"
	EventSettings  EventType = "settings"
)

// Event describes a change that already happened. Seq orders events even
// when observers receive them from different goroutines.
type Event struct {
	Seq      uint64              `json:"seq"`
	Type     EventType           `json:"type"`
	Request  *tts.Request        `json:"request,omitempty"`
	State    State               `json:"state"`
	Enabled  bool                `json:"enabled"`
	Settings tts.ControlSettings `json:"settings"`
	At       time.Time           `json:"at"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	State    State               `json:"state"`
	ActiveID string              `json:"active_id,omitempty"`
	Enabled  bool                `json:"enabled"`
	Settings tts.ControlSettings `json:"settings"`
	Queue    []tts.Request       `json:"queue"`
}

// notification is an outbound collaborator call made after the lock is
// released.
type notification struct {
	op   string
	call func(ctx context.Context) error
}

// batch collects the side effects of one locked transition.
type batch struct {
	events  []Event
	notices []notification
}

func (b *batch) notify(op string, call func(ctx context.Context) error) {
	b.notices = append(b.notices, notification{op: op, call: call})
}
