package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"
)

// rateStream serves a Buffer as 16-bit little-endian mono at the output
// sample rate. The playback rate may change while it is being read; the
// new rate takes effect on the next Read.
type rateStream struct {
	// CRITICAL: samples must stay alive while oto reads from the stream.
	samples []int16

	// Source/output sample-rate ratio.
	base float64

	rate atomic.Uint64 // float64 bits
	pos  float64       // read position in source samples, reader goroutine only
}

func newRateStream(buf *Buffer, outputRate int, rate float64) *rateStream {
	s := &rateStream{
		samples: buf.Samples,
		base:    float64(buf.SampleRate) / float64(outputRate),
	}
	s.SetRate(rate)
	return s
}

// SetRate changes the playback-rate multiplier.
func (s *rateStream) SetRate(rate float64) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 1
	}
	s.rate.Store(math.Float64bits(rate))
}

// Rate returns the current playback-rate multiplier.
func (s *rateStream) Rate() float64 {
	return math.Float64frombits(s.rate.Load())
}

// Read implements io.Reader with linear interpolation between samples.
func (s *rateStream) Read(p []byte) (int, error) {
	step := s.base * s.Rate()
	n := 0
	for n+2 <= len(p) {
		i := int(s.pos)
		if i >= len(s.samples) {
			break
		}
		a := float64(s.samples[i])
		b := a
		if i+1 < len(s.samples) {
			b = float64(s.samples[i+1])
		}
		frac := s.pos - float64(i)
		binary.LittleEndian.PutUint16(p[n:], uint16(clampSample(a+(b-a)*frac)))
		n += 2
		s.pos += step
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
