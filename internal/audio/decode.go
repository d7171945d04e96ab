package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Buffer is decoded mono 16-bit PCM.
type Buffer struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the length of the buffer at unity rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

var (
	errEmptyPayload = errors.New("payload is empty")
	errNoSamples    = errors.New("payload contains no samples")
)

// Decode turns an embedded payload into PCM. The payload may be raw WAV/MP3
// bytes, base64 of either, or a data URL.
func Decode(payload []byte) (*Buffer, error) {
	data, err := unwrapPayload(payload)
	if err != nil {
		return nil, err
	}

	var buf *Buffer
	if isWAV(data) {
		buf, err = decodeWAV(data)
	} else {
		buf, err = decodeMP3(data)
	}
	if err != nil {
		return nil, err
	}
	if len(buf.Samples) == 0 {
		return nil, errNoSamples
	}
	return buf, nil
}

func unwrapPayload(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errEmptyPayload
	}

	if bytes.HasPrefix(trimmed, []byte("data:")) {
		meta, body, ok := strings.Cut(string(trimmed[len("data:"):]), ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("unsupported data URL encoding %q", meta)
		}
		return decodeBase64(body)
	}

	if isWAV(trimmed) || isMP3(trimmed) {
		return trimmed, nil
	}
	return decodeBase64(string(trimmed))
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, errEmptyPayload
	}
	return data, nil
}

func isWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

func isMP3(b []byte) bool {
	if len(b) >= 3 && string(b[0:3]) == "ID3" {
		return true
	}
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

type wavFormat struct {
	format     uint16
	channels   int
	sampleRate int
	bits       int
}

// decodeWAV walks the RIFF chunks for fmt and data.
func decodeWAV(wav []byte) (*Buffer, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}

	var (
		fmtChunk *wavFormat
		data     []byte
	)
	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8
		end := start + chunkSize
		if end > len(wav) || end < start {
			end = len(wav)
		}

		switch chunkID {
		case "fmt ":
			if end-start < 16 {
				return nil, errors.New("wav fmt chunk too short")
			}
			c := wav[start:end]
			fmtChunk = &wavFormat{
				format:     binary.LittleEndian.Uint16(c[0:2]),
				channels:   int(binary.LittleEndian.Uint16(c[2:4])),
				sampleRate: int(binary.LittleEndian.Uint32(c[4:8])),
				bits:       int(binary.LittleEndian.Uint16(c[14:16])),
			}
			if fmtChunk.format == wavFormatExtensible && len(c) >= 26 {
				fmtChunk.format = binary.LittleEndian.Uint16(c[24:26])
			}
		case "data":
			data = wav[start:end]
		}

		pos = end
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	if fmtChunk == nil {
		return nil, errors.New("fmt chunk not found in WAV")
	}
	if data == nil {
		return nil, errors.New("data chunk not found in WAV")
	}
	if fmtChunk.channels < 1 || fmtChunk.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid WAV format: %d channels at %d Hz", fmtChunk.channels, fmtChunk.sampleRate)
	}

	sample, width, err := sampleReader(fmtChunk)
	if err != nil {
		return nil, err
	}

	frameSize := width * fmtChunk.channels
	frames := len(data) / frameSize
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		frame := data[i*frameSize : (i+1)*frameSize]
		for c := 0; c < fmtChunk.channels; c++ {
			sum += int(sample(frame[c*width:]))
		}
		samples[i] = int16(sum / fmtChunk.channels)
	}
	return &Buffer{Samples: samples, SampleRate: fmtChunk.sampleRate}, nil
}

func sampleReader(f *wavFormat) (func([]byte) int16, int, error) {
	switch {
	case f.format == wavFormatPCM && f.bits == 8:
		return func(b []byte) int16 { return int16(int(b[0])-128) << 8 }, 1, nil
	case f.format == wavFormatPCM && f.bits == 16:
		return func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }, 2, nil
	case f.format == wavFormatPCM && f.bits == 24:
		return func(b []byte) int16 { return int16(uint16(b[1]) | uint16(b[2])<<8) }, 3, nil
	case f.format == wavFormatFloat && f.bits == 32:
		return func(b []byte) int16 {
			v := float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			return clampSample(v * math.MaxInt16)
		}, 4, nil
	default:
		return nil, 0, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", f.format, f.bits)
	}
}

// decodeMP3 decodes to go-mp3's stereo 16-bit output and downmixes it.
func decodeMP3(data []byte) (*Buffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("read mp3 frames: %w", err)
	}

	frames := len(pcm) / 4
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		l := int(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		r := int(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
		samples[i] = int16((l + r) / 2)
	}
	return &Buffer{Samples: samples, SampleRate: d.SampleRate()}, nil
}

func clampSample(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// FromPCM16 wraps raw mono signed 16-bit little-endian PCM.
func FromPCM16(pcm []byte, sampleRate int) (*Buffer, error) {
	if len(pcm) < 2 {
		return nil, errNoSamples
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate}, nil
}
