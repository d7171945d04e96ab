// Package cache keeps synthesized speech for the render worker: an in-memory
// LRU in front of a zstd-compressed directory that survives restarts.
package cache
