package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"

	"github.com/streamcore/ttsqueue/internal/logging"
	"github.com/streamcore/ttsqueue/internal/tts"
)

type completions struct {
	mu  sync.Mutex
	ids []string
}

func (c *completions) record(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func (c *completions) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func quietLogger() *log.Logger {
	return logging.Discard()
}

func localRequest(payload []byte) tts.Request {
	return tts.NewRequest("ana", "hola", payload, time.Now())
}

func TestRenderer_RemoteEstimate(t *testing.T) {
	mock := clock.NewMock()
	r := NewRenderer(nil, WithClock(mock), WithLogger(quietLogger()))

	var done completions
	req := tts.NewRequest("ana", "12345678901234567890", nil, mock.Now())
	r.Start(req, tts.DefaultSettings(), done.record)

	mock.Add(2999 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if done.count() != 0 {
		t.Fatal("remote playback completed before its estimate")
	}

	mock.Add(time.Millisecond)
	waitFor(t, "remote completion", func() bool { return done.count() == 1 })
}

func TestRenderer_RemoteStopCancelsTimer(t *testing.T) {
	mock := clock.NewMock()
	r := NewRenderer(nil, WithClock(mock), WithLogger(quietLogger()))

	var done completions
	p := r.Start(tts.NewRequest("ana", "hi", nil, mock.Now()), tts.DefaultSettings(), done.record)

	if !p.Stop() {
		t.Fatal("first Stop should settle the playback")
	}
	if p.Stop() {
		t.Error("second Stop should report already settled")
	}
	mock.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)
	if done.count() != 0 {
		t.Errorf("stopped playback must not call onComplete, got %d calls", done.count())
	}
}

func TestRenderer_LocalNaturalEnd(t *testing.T) {
	out := NewMockOutput(MockCallbacks{})
	r := NewRenderer(out, WithLogger(quietLogger()))

	settings := tts.ControlSettings{Volume: 50, Speed: 1.0, Pitch: 0}
	var done completions
	r.Start(localRequest(EncodeWAV(testBuffer(441, 44100))), settings, done.record)

	waitFor(t, "voice to open", func() bool { return out.Last() != nil })
	v := out.Last()
	if v.Gain() != 0.5 || v.Rate() != 1.0 {
		t.Errorf("voice opened with gain %v rate %v", v.Gain(), v.Rate())
	}
	if done.count() != 0 {
		t.Fatal("completed before the voice ended")
	}

	v.Finish()
	waitFor(t, "local completion", func() bool { return done.count() == 1 })
	v.Finish()
	time.Sleep(10 * time.Millisecond)
	if done.count() != 1 {
		t.Errorf("completion must fire once, got %d", done.count())
	}
}

func TestRenderer_LocalApplyAndStop(t *testing.T) {
	out := NewMockOutput(MockCallbacks{})
	r := NewRenderer(out, WithLogger(quietLogger()))

	var done completions
	p := r.Start(localRequest(EncodeWAV(testBuffer(441, 44100))), tts.DefaultSettings(), done.record)
	waitFor(t, "voice to open", func() bool { return out.Last() != nil })
	v := out.Last()

	p.Apply(tts.ControlSettings{Volume: 20, Speed: 2.0, Pitch: 0})
	if v.Gain() != 0.2 || v.Rate() != 2.0 {
		t.Errorf("live apply gave gain %v rate %v", v.Gain(), v.Rate())
	}

	if !p.Stop() {
		t.Fatal("Stop should settle the playback")
	}
	if !v.Stopped() {
		t.Error("Stop should halt the voice")
	}
	time.Sleep(10 * time.Millisecond)
	if done.count() != 0 {
		t.Errorf("stopped playback must not call onComplete, got %d", done.count())
	}
}

func TestRenderer_DecodeFailureFailsOpen(t *testing.T) {
	out := NewMockOutput(MockCallbacks{})
	var (
		mu     sync.Mutex
		errs   []error
		report = func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		}
	)
	r := NewRenderer(out, WithLogger(quietLogger()), WithErrorHandler(report))

	var done completions
	r.Start(localRequest([]byte("not audio at all")), tts.DefaultSettings(), done.record)

	waitFor(t, "fail-open completion", func() bool { return done.count() == 1 })
	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || !errors.Is(errs[0], tts.ErrDecodeFailed) {
		t.Errorf("expected one DecodeError, got %v", errs)
	}
	if out.OpenCount() != 0 {
		t.Error("no voice should open for an undecodable payload")
	}
}

func TestRenderer_OutputFailureFailsOpen(t *testing.T) {
	out := NewMockOutput(MockCallbacks{})
	out.FailWith(errors.New("device busy"))
	r := NewRenderer(out, WithLogger(quietLogger()))

	var done completions
	r.Start(localRequest(EncodeWAV(testBuffer(10, 44100))), tts.DefaultSettings(), done.record)
	waitFor(t, "fail-open completion", func() bool { return done.count() == 1 })

	noOut := NewRenderer(nil, WithLogger(quietLogger()))
	noOut.Start(localRequest(EncodeWAV(testBuffer(10, 44100))), tts.DefaultSettings(), done.record)
	waitFor(t, "fail-open without output", func() bool { return done.count() == 2 })
}

func TestRenderer_StopDuringDecode(t *testing.T) {
	out := NewMockOutput(MockCallbacks{})
	release := make(chan struct{})
	slow := func(b []byte) (*Buffer, error) {
		<-release
		return Decode(b)
	}
	r := NewRenderer(out, WithLogger(quietLogger()), WithDecoder(slow))

	var done completions
	p := r.Start(localRequest(EncodeWAV(testBuffer(10, 44100))), tts.DefaultSettings(), done.record)
	if !p.Stop() {
		t.Fatal("Stop should settle a decoding playback")
	}
	close(release)
	time.Sleep(20 * time.Millisecond)

	if out.OpenCount() != 0 {
		t.Error("a playback stopped during decode must not open a voice")
	}
	if done.count() != 0 {
		t.Errorf("stopped playback must not call onComplete, got %d", done.count())
	}
}
