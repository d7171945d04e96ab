package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV writes buf as a 16-bit mono PCM WAV file.
func EncodeWAV(buf *Buffer) []byte {
	dataSize := len(buf.Samples) * 2

	var b bytes.Buffer
	b.Grow(44 + dataSize)
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))
	_ = binary.Write(&b, binary.LittleEndian, uint32(buf.SampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(buf.SampleRate*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))

	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(&b, binary.LittleEndian, buf.Samples)
	return b.Bytes()
}
