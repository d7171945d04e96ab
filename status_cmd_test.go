package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/streamcore/ttsqueue/internal/playback"
	"github.com/streamcore/ttsqueue/internal/tts"
)

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"playing","active_id":"a","enabled":true,
			"settings":{"volume":80,"speed":0.7,"pitch":0},
			"queue":[{"id":"a","user":"ana","message":"hola","status":"playing","enqueued_at":"2026-01-01T12:00:00Z"}]}`))
	}))
	defer srv.Close()

	status, _, err := fetchStatus(srv.URL)
	if err != nil {
		t.Fatalf("fetchStatus: %v", err)
	}
	if status.State != playback.Playing || len(status.Queue) != 1 || status.Queue[0].User != "ana" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestFetchStatus_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, _, err := fetchStatus(srv.URL); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestFormatStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	s := playback.Status{
		State:    playback.Idle,
		Enabled:  false,
		Settings: tts.DefaultSettings(),
		Queue: []tts.Request{
			{ID: "a", User: "ana", Message: "hola\n  mundo", Status: tts.StatusPending, EnqueuedAt: now.Add(-30 * time.Second)},
			{ID: "b", User: "luis", Status: tts.StatusPending, EnqueuedAt: now},
		},
	}

	out := formatStatus(s, 80, now)
	for _, want := range []string{"idle", "off", "1.1", "ana: hola mundo", "luis: (audio)", "30 seconds ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	empty := formatStatus(playback.Status{Settings: tts.DefaultSettings()}, 80, now)
	if !strings.Contains(empty, "queue is empty") {
		t.Errorf("empty queue not reported:\n%s", empty)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hola", 10, "hola"},
		{"hola mundo", 5, "hola…"},
		{"ñandú", 3, "ña…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
