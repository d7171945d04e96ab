package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	rawExt        = ".pcm"
	compressedExt = ".pcm.zst"
	// items smaller than this are stored raw
	compressThreshold = 1024
)

// DiskCache is the second level. Entries are files named after their key;
// the index is rebuilt from the directory on open.
type DiskCache struct {
	dir      string
	capacity int64
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	now      func() time.Time

	mu    sync.Mutex
	index map[string]*diskEntry
	size  int64
	stats Stats
}

type diskEntry struct {
	path       string
	size       int64
	compressed bool
	written    time.Time
	lastAccess time.Time
}

// NewDiskCache opens or creates a cache in dir. A compression level of 0
// disables zstd.
func NewDiskCache(dir string, capacity int64, level int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		now:      time.Now,
		index:    make(map[string]*diskEntry),
	}
	dc.stats.Capacity = capacity

	if level > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	// the decoder is always available so files from a compressed run stay readable
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	dc.decoder = dec

	if err := dc.scan(); err != nil {
		return nil, err
	}
	return dc, nil
}

func (dc *DiskCache) scan() error {
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return fmt.Errorf("read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var key string
		var compressed bool
		switch {
		case strings.HasSuffix(name, compressedExt):
			key, compressed = strings.TrimSuffix(name, compressedExt), true
		case strings.HasSuffix(name, rawExt):
			key = strings.TrimSuffix(name, rawExt)
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dc.index[key] = &diskEntry{
			path:       filepath.Join(dc.dir, name),
			size:       info.Size(),
			compressed: compressed,
			written:    info.ModTime(),
			lastAccess: info.ModTime(),
		}
		dc.size += info.Size()
	}
	return nil
}

func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := dc.read(e)
	if err != nil {
		dc.dropLocked(key, e)
		dc.stats.Misses++
		return nil, false
	}
	e.lastAccess = dc.now()
	dc.stats.Hits++
	return data, true
}

func (dc *DiskCache) read(e *diskEntry) ([]byte, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}
	if !e.compressed {
		return data, nil
	}
	out, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return out, nil
}

func (dc *DiskCache) Put(key string, value []byte) error {
	data, compressed := value, false
	if dc.encoder != nil && len(value) > compressThreshold {
		if packed := dc.encoder.EncodeAll(value, nil); len(packed) < len(value) {
			data, compressed = packed, true
		}
	}
	n := int64(len(data))
	if n > dc.capacity {
		return ErrItemTooLarge
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if old, ok := dc.index[key]; ok {
		dc.dropLocked(key, old)
	}
	for dc.size+n > dc.capacity && len(dc.index) > 0 {
		dc.evictOldestLocked()
	}

	ext := rawExt
	if compressed {
		ext = compressedExt
	}
	path := filepath.Join(dc.dir, key+ext)
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	now := dc.now()
	dc.index[key] = &diskEntry{path: path, size: n, compressed: compressed, written: now, lastAccess: now}
	dc.size += n
	return nil
}

func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if e, ok := dc.index[key]; ok {
		dc.dropLocked(key, e)
	}
}

func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	var errs []error
	for key, e := range dc.index {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		delete(dc.index, key)
	}
	dc.size = 0
	return errors.Join(errs...)
}

// RemoveOlderThan drops entries written before cutoff and returns how many.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, e := range dc.index {
		if e.written.Before(cutoff) {
			dc.dropLocked(key, e)
			removed++
		}
	}
	return removed
}

func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Size = dc.size
	s.Items = len(dc.index)
	return s
}

// Close releases the zstd workers.
func (dc *DiskCache) Close() error {
	if dc.encoder != nil {
		if err := dc.encoder.Close(); err != nil {
			return err
		}
	}
	dc.decoder.Close()
	return nil
}

func (dc *DiskCache) dropLocked(key string, e *diskEntry) {
	_ = os.Remove(e.path)
	delete(dc.index, key)
	dc.size -= e.size
}

func (dc *DiskCache) evictOldestLocked() {
	var oldestKey string
	var oldest *diskEntry
	for key, e := range dc.index {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldestKey, oldest = key, e
		}
	}
	if oldest != nil {
		dc.dropLocked(oldestKey, oldest)
		dc.stats.Evictions++
	}
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
