// Package playback drives the TTS queue: it decides when the next request
// starts, routes completions from the renderer, and keeps listener settings
// in sync with the backend.
package playback
