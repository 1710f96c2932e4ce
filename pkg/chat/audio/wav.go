package audio

import "encoding/binary"

// Format describes raw PCM audio.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat matches the agent voice pipeline output.
func DefaultFormat() Format {
	return Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// bytesPerSecond returns the PCM data rate for the format.
func (f Format) bytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// DurationMs returns how long n bytes of PCM play for, in milliseconds.
func (f Format) DurationMs(n int) int {
	bps := f.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	return n * 1000 / bps
}

// PCMToWAV wraps raw PCM samples in a standard 44-byte RIFF/WAVE header so
// the result is playable by ordinary audio tooling.
func PCMToWAV(pcm []byte, format Format) []byte {
	dataLen := len(pcm)
	blockAlign := format.Channels * format.BitsPerSample / 8

	out := make([]byte, 44+dataLen)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(format.bytesPerSecond()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(format.BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	copy(out[44:], pcm)
	return out
}
