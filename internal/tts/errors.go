package tts

import (
	"errors"
	"fmt"
)

// Common queue and playback errors.
var (
	// ErrQueueFull indicates the request queue is at capacity
	ErrQueueFull = errors.New("request queue is full")

	// ErrNotFound indicates no request with the given id is queued
	ErrNotFound = errors.New("request not found")

	// ErrAlreadyPlaying indicates another request already holds playback
	ErrAlreadyPlaying = errors.New("another request is already playing")

	// ErrClosed indicates the controller has been shut down
	ErrClosed = errors.New("playback controller is closed")

	// ErrEmptyMessage indicates a manual enqueue carried no text
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInvalidSettings indicates a control setting is out of range
	ErrInvalidSettings = errors.New("invalid control setting")

	// ErrDecodeFailed indicates an embedded payload could not be decoded or played
	ErrDecodeFailed = errors.New("audio decode failed")

	// ErrCommunication indicates the external collaborator could not be reached
	ErrCommunication = errors.New("collaborator communication failed")
)

// ValidationError reports a rejected control setting. The prior value is
// always retained when this error is returned.
type ValidationError struct {
	Field string
	Value any
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %v: %s", e.Field, e.Value, e.Rule)
}

// Unwrap makes errors.Is(err, ErrInvalidSettings) hold.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSettings
}

// DecodeError reports a Local payload that failed to decode or play.
// The request it belongs to is treated as completed.
type DecodeError struct {
	RequestID string
	Cause     error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode %s: %v", e.RequestID, e.Cause)
	}
	return "decode " + e.RequestID + ": " + ErrDecodeFailed.Error()
}

// Is matches ErrDecodeFailed.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecodeFailed
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// CommunicationError reports a failed outbound call to the collaborator.
// Local state stays authoritative; nothing is rolled back or retried.
type CommunicationError struct {
	Op    string
	Cause error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Is matches ErrCommunication.
func (e *CommunicationError) Is(target error) bool {
	return target == ErrCommunication
}

// Unwrap returns the underlying cause.
func (e *CommunicationError) Unwrap() error {
	return e.Cause
}

// IsRecoverableError reports whether the queue keeps working after err.
// Everything but a closed controller is recoverable.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, ErrClosed)
}
