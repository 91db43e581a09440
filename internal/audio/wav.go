package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotWAV         = errors.New("audio: not a RIFF/WAVE stream")
	ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding")
)

const wavHeaderSize = 44

// EncodeWAV writes the asset as a 16-bit PCM WAV file.
func EncodeWAV(a *Asset) []byte {
	dataSize := len(a.Samples) * 2
	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(a.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(a.SampleRate))
	byteRate := a.SampleRate * a.Channels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(a.Channels*2)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	off := wavHeaderSize
	for _, s := range a.Samples {
		v := int16(math.Round(clamp(s) * 32767))
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(v))
		off += 2
	}
	return buf
}

// DecodeWAV parses a 16-bit PCM WAV file into an asset. Other encodings
// (float, compressed, 8/24-bit) are rejected.
func DecodeWAV(data []byte) (*Asset, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		pcm        []byte
		haveFmt    bool
	)

	// Walk the chunk list; files in the wild carry LIST/INFO chunks between
	// fmt and data.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || pcm == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	if bitDepth != 16 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bitDepth)
	}
	if channels < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("%w: invalid fmt parameters", ErrNotWAV)
	}

	n := len(pcm) / 2
	a := &Asset{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		a.Samples[i] = float64(v) / 32768
	}
	return a, nil
}

// DecodePCM16 interprets raw little-endian 16-bit PCM (headerless, as
// returned by providers with pcm output formats).
func DecodePCM16(data []byte, sampleRate, channels int) *Asset {
	n := len(data) / 2
	a := &Asset{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		a.Samples[i] = float64(v) / 32768
	}
	return a
}

func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
