package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestWAV_EncodeDecode(t *testing.T) {
	src := sine(440, 0.5, 22050, 2, 2205)

	decoded, err := DecodeWAV(EncodeWAV(src))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.SampleRate != 22050 || decoded.Channels != 2 {
		t.Fatalf("shape mismatch: rate=%d channels=%d", decoded.SampleRate, decoded.Channels)
	}
	if decoded.Frames() != src.Frames() {
		t.Fatalf("frame count: got %d, want %d", decoded.Frames(), src.Frames())
	}
	// 16-bit quantization bounds the round-trip error.
	for i := range src.Samples {
		if math.Abs(decoded.Samples[i]-src.Samples[i]) > 1.0/16384 {
			t.Fatalf("sample %d drifted: %f -> %f", i, src.Samples[i], decoded.Samples[i])
		}
	}
}

func TestDecodeWAV_SkipsForeignChunks(t *testing.T) {
	// Files exported by editors often carry a LIST chunk between fmt and
	// data. Splice one in and make sure the walker steps over it.
	raw := EncodeWAV(sine(440, 0.5, 44100, 1, 441))

	list := make([]byte, 8+12)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 12)
	copy(list[8:], "INFOIARTful")

	spliced := make([]byte, 0, len(raw)+len(list))
	spliced = append(spliced, raw[:36]...) // RIFF header + fmt chunk
	spliced = append(spliced, list...)
	spliced = append(spliced, raw[36:]...) // data chunk
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	decoded, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Frames() != 441 {
		t.Errorf("frame count: got %d, want 441", decoded.Frames())
	}
}

func TestDecodeWAV_Rejections(t *testing.T) {
	if _, err := DecodeWAV([]byte("not audio at all")); !errors.Is(err, ErrNotWAV) {
		t.Errorf("garbage: expected ErrNotWAV, got %v", err)
	}

	// IEEE-float format tag must be rejected, not misread as PCM.
	raw := EncodeWAV(sine(440, 0.5, 44100, 1, 100))
	binary.LittleEndian.PutUint16(raw[20:22], 3)
	if _, err := DecodeWAV(raw); !errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("float format: expected ErrUnsupportedWAV, got %v", err)
	}
}

func TestDecodePCM16(t *testing.T) {
	buf := make([]byte, 8)
	neg := int16(-16384)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(int16(16384))) // 0.5
	binary.LittleEndian.PutUint16(buf[2:4], uint16(neg))          // -0.5
	binary.LittleEndian.PutUint16(buf[4:6], 0)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(int16(32767)))

	a := DecodePCM16(buf, 44100, 1)
	if a.SampleRate != 44100 || a.Channels != 1 || len(a.Samples) != 4 {
		t.Fatalf("shape mismatch: %+v", a)
	}
	want := []float64{0.5, -0.5, 0, 32767.0 / 32768}
	for i, w := range want {
		if math.Abs(a.Samples[i]-w) > 1e-9 {
			t.Errorf("sample %d: got %f, want %f", i, a.Samples[i], w)
		}
	}
}
