// Package queue stores pending and playing TTS requests in strict arrival
// order. It is plain storage: deciding when a request starts or stops is the
// playback controller's job.
package queue
