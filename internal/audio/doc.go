// Package audio renders queued TTS requests. Local requests carry their own
// encoded audio, which is decoded and played through an Output (oto/v3 in
// production). Remote requests are spoken elsewhere, so only a timer tracks
// their expected end.
package audio
