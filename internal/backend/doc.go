// Package backend connects the playback queue to the rest of the stream
// stack over Redis pub/sub: outbound commands for the remote renderer and
// inbound requests and chat lines.
package backend
