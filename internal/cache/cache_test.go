package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamcore/ttsqueue/internal/logging"
)

func TestMemoryCache_ByteBound(t *testing.T) {
	c, err := NewMemoryCache(10, 100)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Put("a", make([]byte, 40)); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("b", make([]byte, 40)); err != nil {
		t.Fatal(err)
	}
	c.Get("a") // a becomes most recent
	if err := c.Put("c", make([]byte, 40)); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive as recently used")
	}
	s := c.Stats()
	if s.Size != 80 || s.Items != 2 || s.Evictions != 1 {
		t.Errorf("unexpected stats %+v", s)
	}

	if err := c.Put("huge", make([]byte, 101)); err != ErrItemTooLarge {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemoryCache_EntryBoundAndReplace(t *testing.T) {
	c, err := NewMemoryCache(2, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Put("a", []byte("1"))
	_ = c.Put("a", []byte("123"))
	if s := c.Stats(); s.Size != 3 || s.Items != 1 || s.Evictions != 0 {
		t.Errorf("replacement accounting wrong: %+v", s)
	}

	_ = c.Put("b", []byte("2"))
	_ = c.Put("c", []byte("3"))
	if _, ok := c.Get("a"); ok {
		t.Error("entry bound should evict the oldest")
	}

	c.Delete("b")
	_ = c.Clear()
	if s := c.Stats(); s.Size != 0 || s.Items != 0 {
		t.Errorf("clear left %+v", s)
	}
}

func TestDiskCache_CompressionAndReopen(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}

	big := bytes.Repeat([]byte("speech"), 1000)
	small := []byte("tiny")
	if err := dc.Put("big", big); err != nil {
		t.Fatal(err)
	}
	if err := dc.Put("small", small); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "big"+compressedExt)); err != nil {
		t.Errorf("large value should be stored compressed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "small"+rawExt)); err != nil {
		t.Errorf("small value should be stored raw: %v", err)
	}
	if s := dc.Stats(); s.Size >= int64(len(big)) {
		t.Errorf("compressed size %d not smaller than %d", s.Size, len(big))
	}
	_ = dc.Close()

	reopened, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close() //nolint:errcheck
	got, ok := reopened.Get("big")
	if !ok || !bytes.Equal(got, big) {
		t.Error("compressed entry not readable after reopen")
	}
	if got, ok := reopened.Get("small"); !ok || !bytes.Equal(got, small) {
		t.Error("raw entry not readable after reopen")
	}
}

func TestDiskCache_CorruptEntryIsEvicted(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close() //nolint:errcheck

	if err := dc.Put("k", bytes.Repeat([]byte{1, 2, 3, 4}, 1000)); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "k"+compressedExt)
	if err := os.WriteFile(path, []byte("not zstd"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := dc.Get("k"); ok {
		t.Error("corrupt entry must miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt file should be removed")
	}
	if s := dc.Stats(); s.Items != 0 || s.Size != 0 {
		t.Errorf("index not cleaned: %+v", s)
	}
}

func TestDiskCache_EvictionAndExpiry(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close() //nolint:errcheck

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dc.now = func() time.Time { return now }

	_ = dc.Put("old", make([]byte, 60))
	now = now.Add(time.Minute)
	_ = dc.Put("new", make([]byte, 60))

	if _, ok := dc.Get("old"); ok {
		t.Error("capacity should evict the least recently used file")
	}
	if s := dc.Stats(); s.Evictions != 1 || s.Items != 1 {
		t.Errorf("unexpected stats %+v", s)
	}

	if n := dc.RemoveOlderThan(now.Add(time.Second)); n != 1 {
		t.Errorf("RemoveOlderThan removed %d", n)
	}
}

func TestManager_PromotesDiskHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiskPath = t.TempDir()
	cfg.CleanupInterval = 0

	m, err := NewManager(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close() //nolint:errcheck

	key := GenerateKey("hola", "es", 0.7)
	if err := m.Put(key, []byte("pcm")); err != nil {
		t.Fatal(err)
	}
	m.memory.Delete(key)

	if got, ok := m.Get(key); !ok || string(got) != "pcm" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := m.Get(key); !ok {
		t.Fatal("second Get missed")
	}
	if _, ok := m.Get("absent"); ok {
		t.Fatal("unexpected hit")
	}

	s := m.Stats()
	if s.DiskHits != 1 || s.MemoryHits != 1 || s.Misses != 1 || s.Promotions != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
	if r := s.HitRate(); r < 0.66 || r > 0.67 {
		t.Errorf("hit rate %v", r)
	}

	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(key); ok {
		t.Error("Clear left the entry behind")
	}
}

func TestNewManager_RequiresPath(t *testing.T) {
	if _, err := NewManager(Config{}, logging.Discard()); err == nil {
		t.Error("expected an error without a disk path")
	}
}

func TestGenerateKey(t *testing.T) {
	a := GenerateKey(" hola ", "ES", 0.7)
	b := GenerateKey("hola", "es", 0.701)
	if a != b {
		t.Error("equivalent inputs should share a key")
	}
	if a == GenerateKey("hola", "es", 1.0) {
		t.Error("speed must be part of the key")
	}
	if len(a) != 32 || strings.ToLower(a) != a {
		t.Errorf("unexpected key format %q", a)
	}
}
