package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds a level's capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCorrupted is returned when stored data cannot be decoded.
	ErrCorrupted = errors.New("cache data corrupted")
)

// Level identifies a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats are counters for one level.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config sizes both levels.
type Config struct {
	MemoryEntries  int
	MemoryCapacity int64 // bytes
	DiskPath       string
	DiskCapacity   int64 // bytes
	// CompressionLevel is a zstd level; 0 stores files uncompressed.
	CompressionLevel int
	TTL              time.Duration
	CleanupInterval  time.Duration
}

// DefaultConfig returns the sizes used by the render worker.
func DefaultConfig() Config {
	return Config{
		MemoryEntries:    256,
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Cache is one level.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string)
	Clear() error
	Stats() Stats
}

// GenerateKey derives the key for synthesized text. Text is trimmed and
// speed rounded to two decimals so equivalent requests share an entry.
func GenerateKey(text, language string, speed float64) string {
	data := fmt.Sprintf("%s|%s|%.2f", strings.TrimSpace(text), strings.ToLower(language), speed)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:16])
}
