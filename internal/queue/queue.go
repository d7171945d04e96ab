package queue

import (
	"sync"
	"time"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// Store holds TTS requests in arrival order. It never blocks: a full store
// rejects instead of applying backpressure.
type Store struct {
	// Requests in insertion order. Removal never reorders the rest.
	items []tts.Request

	// Configuration
	capacity int // 0 means unlimited
	now      func() time.Time

	mu    sync.RWMutex
	stats Stats
}

// Stats tracks queue counters.
type Stats struct {
	TotalEnqueued int64
	TotalRemoved  int64
	TotalCleared  int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity bounds the number of queued requests.
func WithCapacity(n int) Option {
	return func(s *Store) { s.capacity = n }
}

// WithClock sets the time source used for EnqueuedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue appends a pending request and returns it.
func (s *Store) Enqueue(user, message string, payload []byte) (tts.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && len(s.items) >= s.capacity {
		return tts.Request{}, tts.ErrQueueFull
	}

	req := tts.NewRequest(user, message, payload, s.now())
	s.items = append(s.items, req)

	s.stats.TotalEnqueued++
	s.stats.LastEnqueue = req.EnqueuedAt
	s.stats.CurrentSize = len(s.items)
	if s.stats.CurrentSize > s.stats.PeakSize {
		s.stats.PeakSize = s.stats.CurrentSize
	}
	return req, nil
}

// Remove deletes the request with the given id, whatever its status.
func (s *Store) Remove(id string) (tts.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return tts.Request{}, false
	}
	req := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)

	s.stats.TotalRemoved++
	s.stats.CurrentSize = len(s.items)
	return req, true
}

// PeekNextPending returns the earliest pending request.
func (s *Store) PeekNextPending() (tts.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.items {
		if req.Status == tts.StatusPending {
			return req, true
		}
	}
	return tts.Request{}, false
}

// MarkPlaying moves a pending request to playing. Only one request may be
// playing at a time.
func (s *Store) MarkPlaying(id string) (tts.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return tts.Request{}, tts.ErrNotFound
	}
	for _, req := range s.items {
		if req.Status == tts.StatusPlaying {
			if req.ID == id {
				return req, nil
			}
			return tts.Request{}, tts.ErrAlreadyPlaying
		}
	}
	s.items[i].Status = tts.StatusPlaying
	return s.items[i], nil
}

// Get returns the request with the given id.
func (s *Store) Get(id string) (tts.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return tts.Request{}, false
	}
	return s.items[i], true
}

// Snapshot returns a copy of the queue in order.
func (s *Store) Snapshot() []tts.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tts.Request, len(s.items))
	copy(out, s.items)
	return out
}

// Clear empties the store and returns how many requests were dropped.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	s.items = nil
	s.stats.TotalCleared += int64(n)
	s.stats.CurrentSize = 0
	return n
}

// Len returns the number of queued requests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// PlayingCount returns how many requests are playing; always 0 or 1.
func (s *Store) PlayingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, req := range s.items {
		if req.Status == tts.StatusPlaying {
			n++
		}
	}
	return n
}

// Stats returns a copy of the counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Store) indexOf(id string) int {
	for i, req := range s.items {
		if req.ID == id {
			return i
		}
	}
	return -1
}
