package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// MockOutput implements Output for testing purposes.
// It simulates voices without producing sound.
type MockOutput struct {
	mu     sync.Mutex
	voices []*MockVoice

	// Test configuration
	openErr    error
	autoFinish time.Duration // 0 means voices only end via Finish or Stop

	// Test callbacks
	callbacks MockCallbacks

	openCount atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnOpen func(v *MockVoice)
	OnStop func(v *MockVoice)
}

// NewMockOutput creates a mock output with custom callbacks.
func NewMockOutput(callbacks MockCallbacks) *MockOutput {
	return &MockOutput{callbacks: callbacks}
}

// FailWith makes every later Open return err.
func (m *MockOutput) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// AutoFinish ends every later voice after d of wall time.
func (m *MockOutput) AutoFinish(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoFinish = d
}

// Open implements Output.
func (m *MockOutput) Open(buf *Buffer, p Params) (Voice, error) {
	m.mu.Lock()
	if m.openErr != nil {
		err := m.openErr
		m.mu.Unlock()
		return nil, err
	}
	v := &MockVoice{
		output: m,
		buffer: buf,
		gain:   p.Gain,
		rate:   p.Rate,
		done:   make(chan struct{}),
	}
	m.voices = append(m.voices, v)
	auto := m.autoFinish
	m.mu.Unlock()

	m.openCount.Add(1)
	if m.callbacks.OnOpen != nil {
		m.callbacks.OnOpen(v)
	}
	if auto > 0 {
		time.AfterFunc(auto, v.Finish)
	}
	return v, nil
}

// Voices returns every voice opened so far.
func (m *MockOutput) Voices() []*MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockVoice, len(m.voices))
	copy(out, m.voices)
	return out
}

// Last returns the most recently opened voice, or nil.
func (m *MockOutput) Last() *MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.voices) == 0 {
		return nil
	}
	return m.voices[len(m.voices)-1]
}

// OpenCount returns how many voices were opened.
func (m *MockOutput) OpenCount() int {
	return int(m.openCount.Load())
}

// MockVoice is a simulated voice.
type MockVoice struct {
	output *MockOutput
	buffer *Buffer

	mu          sync.Mutex
	gain        float64
	rate        float64
	gainChanges int
	rateChanges int
	stopped     bool

	done chan struct{}
	once sync.Once
}

func (v *MockVoice) SetGain(gain float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gain = gain
	v.gainChanges++
}

func (v *MockVoice) SetRate(rate float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rate = rate
	v.rateChanges++
}

func (v *MockVoice) Stop() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.mu.Unlock()

	if v.output.callbacks.OnStop != nil {
		v.output.callbacks.OnStop(v)
	}
	v.end()
}

func (v *MockVoice) Done() <-chan struct{} {
	return v.done
}

// Finish simulates the buffer playing to its natural end.
func (v *MockVoice) Finish() {
	v.end()
}

// Ended reports whether the voice has ended for any reason.
func (v *MockVoice) Ended() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

// Stopped reports whether Stop was called.
func (v *MockVoice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

// Gain returns the current gain.
func (v *MockVoice) Gain() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gain
}

// Rate returns the current rate.
func (v *MockVoice) Rate() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rate
}

// Changes returns how many times gain and rate were adjusted live.
func (v *MockVoice) Changes() (gain, rate int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gainChanges, v.rateChanges
}

// Buffer returns the buffer the voice was opened with.
func (v *MockVoice) Buffer() *Buffer {
	return v.buffer
}

func (v *MockVoice) end() {
	v.once.Do(func() { close(v.done) })
}
