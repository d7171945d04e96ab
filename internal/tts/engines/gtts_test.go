package engines

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/streamcore/ttsqueue/internal/cache"
	"github.com/streamcore/ttsqueue/internal/logging"
)

type call struct {
	name  string
	args  []string
	stdin string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	fail  string
}

func (f *fakeRunner) run(_ context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args, stdin: string(stdin)})
	if name == f.fail {
		return nil, errors.New("exit status 1")
	}
	switch name {
	case "gtts-cli":
		return []byte("ID3-mp3-" + string(stdin)), nil
	case "ffmpeg":
		return []byte{1, 0, 2, 0}, nil
	}
	return nil, errors.New("unexpected binary " + name)
}

func TestGTTSEngine_Pipeline(t *testing.T) {
	r := &fakeRunner{}
	e := NewGTTSEngine(GTTSConfig{Runner: r.run, Log: logging.NewSynthesisLog(logging.Discard())})

	pcm, err := e.Synthesize(context.Background(), "  hola mundo ", 0.7)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(pcm) != 4 {
		t.Errorf("unexpected pcm %v", pcm)
	}
	if len(r.calls) != 2 {
		t.Fatalf("expected 2 process calls, got %d", len(r.calls))
	}

	gtts := r.calls[0]
	if gtts.stdin != "hola mundo" || !strings.Contains(strings.Join(gtts.args, " "), "-l es") {
		t.Errorf("gtts call %+v", gtts)
	}

	ffmpeg := r.calls[1]
	args := strings.Join(ffmpeg.args, " ")
	if !strings.Contains(args, "asetrate=30870,aresample=44100") {
		t.Errorf("ffmpeg filter missing from %q", args)
	}
	if !strings.Contains(args, "-f s16le") || ffmpeg.stdin != "ID3-mp3-hola mundo" {
		t.Errorf("ffmpeg call %+v", ffmpeg)
	}
}

func TestGTTSEngine_UsesCache(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.DiskPath = t.TempDir()
	cfg.CleanupInterval = 0
	m, err := cache.NewManager(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close() //nolint:errcheck

	r := &fakeRunner{}
	e := NewGTTSEngine(GTTSConfig{Runner: r.run, Cache: m, RequestsPerMinute: 6000})

	for i := 0; i < 3; i++ {
		if _, err := e.Synthesize(context.Background(), "hola", 1.0); err != nil {
			t.Fatal(err)
		}
	}
	if len(r.calls) != 2 {
		t.Errorf("cached synthesis should run the pipeline once, got %d calls", len(r.calls))
	}

	if _, err := e.Synthesize(context.Background(), "hola", 1.5); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 4 {
		t.Errorf("a new speed must miss the cache, got %d calls", len(r.calls))
	}
}

func TestGTTSEngine_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		fail string
	}{
		{"empty text", "   ", ""},
		{"too long", strings.Repeat("a", maxTextSize+1), ""},
		{"gtts fails", "hola", "gtts-cli"},
		{"ffmpeg fails", "hola", "ffmpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{fail: tt.fail}
			e := NewGTTSEngine(GTTSConfig{Runner: r.run})
			if _, err := e.Synthesize(context.Background(), tt.text, 1.0); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGTTSEngine_CanceledContext(t *testing.T) {
	r := &fakeRunner{}
	e := NewGTTSEngine(GTTSConfig{Runner: r.run})
	// drain the single burst token
	if _, err := e.Synthesize(context.Background(), "uno", 1.0); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Synthesize(ctx, "dos", 1.0); err == nil {
		t.Error("expected the limiter wait to fail")
	}
}
