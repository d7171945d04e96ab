package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager looks entries up in memory first, then on disk, promoting disk
// hits back into memory.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	cfg    Config
	logger *log.Logger

	mu    sync.Mutex
	stats ManagerStats

	stop chan struct{}
	wg   sync.WaitGroup
}

// ManagerStats aggregates both levels.
type ManagerStats struct {
	MemoryHits  int64
	DiskHits    int64
	Misses      int64
	Promotions  int64
	CleanupRuns int64
	Memory      Stats
	Disk        Stats
}

// HitRate returns the combined hit rate.
func (s ManagerStats) HitRate() float64 {
	hits := s.MemoryHits + s.DiskHits
	if hits+s.Misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+s.Misses)
}

// NewManager opens both levels. cfg.DiskPath is required.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if cfg.DiskPath == "" {
		return nil, errors.New("cache: disk path is required")
	}
	def := DefaultConfig()
	if cfg.MemoryEntries <= 0 {
		cfg.MemoryEntries = def.MemoryEntries
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = def.MemoryCapacity
	}
	if cfg.DiskCapacity <= 0 {
		cfg.DiskCapacity = def.DiskCapacity
	}

	memory, err := NewMemoryCache(cfg.MemoryEntries, cfg.MemoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("create disk cache: %w", err)
	}

	m := &Manager{
		memory: memory,
		disk:   disk,
		cfg:    cfg,
		logger: logger.With("component", "cache"),
		stop:   make(chan struct{}),
	}
	if ds := disk.Stats(); ds.Items > 0 {
		m.logger.Info("disk cache opened", "path", cfg.DiskPath, "items", ds.Items, "size", humanize.IBytes(uint64(ds.Size)))
	}
	if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m, nil
}

// Get returns the value for key from the fastest level that has it.
func (m *Manager) Get(key string) ([]byte, bool) {
	if v, ok := m.memory.Get(key); ok {
		m.count(func(s *ManagerStats) { s.MemoryHits++ })
		return v, true
	}
	if v, ok := m.disk.Get(key); ok {
		_ = m.memory.Put(key, v)
		m.count(func(s *ManagerStats) { s.DiskHits++; s.Promotions++ })
		return v, true
	}
	m.count(func(s *ManagerStats) { s.Misses++ })
	return nil, false
}

// Put stores value in both levels. Too-large items are skipped per level.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("disk cache: %w", err)
	}
	m.logger.Debug("cached audio", "key", key, "size", humanize.IBytes(uint64(len(value))))
	return nil
}

func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	m.disk.Delete(key)
}

func (m *Manager) Clear() error {
	_ = m.memory.Clear()
	if err := m.disk.Clear(); err != nil {
		return fmt.Errorf("clear disk cache: %w", err)
	}
	return nil
}

// Cleanup removes disk entries older than the configured TTL.
func (m *Manager) Cleanup() int {
	m.count(func(s *ManagerStats) { s.CleanupRuns++ })
	if m.cfg.TTL <= 0 {
		return 0
	}
	removed := m.disk.RemoveOlderThan(time.Now().Add(-m.cfg.TTL))
	if removed > 0 {
		m.logger.Info("expired cache entries removed", "count", removed)
	}
	return removed
}

func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	s := m.stats
	m.mu.Unlock()
	s.Memory = m.memory.Stats()
	s.Disk = m.disk.Stats()
	return s
}

// Close stops the cleanup loop and releases the disk level.
func (m *Manager) Close() error {
	select {
	case <-m.stop:
		return nil
	default:
		close(m.stop)
	}
	m.wg.Wait()
	return m.disk.Close()
}

func (m *Manager) count(fn func(*ManagerStats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stop:
			return
		}
	}
}
