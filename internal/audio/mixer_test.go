package audio

import (
	"math"
	"testing"
)

func sine(freqHz, amp float64, sampleRate, channels, frames int) *Asset {
	a := NewAsset(sampleRate, channels, frames)
	step := 2 * math.Pi * freqHz / float64(sampleRate)
	for f := 0; f < frames; f++ {
		s := amp * math.Sin(step*float64(f))
		for c := 0; c < channels; c++ {
			a.Samples[f*channels+c] = s
		}
	}
	return a
}

func TestMix_NoLayers(t *testing.T) {
	if _, err := Mix(nil, 44100); err != ErrNoLayers {
		t.Fatalf("expected ErrNoLayers, got %v", err)
	}
}

func TestMix_AlwaysStereo(t *testing.T) {
	mono := sine(440, 0.5, 44100, 1, 44100)
	out, err := Mix([]Layer{{Asset: mono}}, 44100)
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	if out.Channels != 2 {
		t.Fatalf("expected stereo master, got %d channels", out.Channels)
	}
	// Mono input appears centered: identical on both channels.
	for f := 0; f < out.Frames(); f++ {
		if out.Samples[f*2] != out.Samples[f*2+1] {
			t.Fatalf("mono layer not centered at frame %d", f)
		}
	}
}

func TestMix_FirstLayerDefinesLength(t *testing.T) {
	voice := sine(440, 0.5, 44100, 2, 44100)   // 1 s
	longBed := sine(110, 0.3, 44100, 2, 88200) // 2 s, must be truncated
	shortFx := sine(880, 0.3, 44100, 2, 22050) // 0.5 s, drops out

	out, err := Mix([]Layer{
		{Asset: voice},
		{Asset: longBed},
		{Asset: shortFx},
	}, 44100)
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	if out.Frames() != voice.Frames() {
		t.Fatalf("expected %d frames (first layer), got %d", voice.Frames(), out.Frames())
	}
}

func TestMix_PerLayerGainBeforeSum(t *testing.T) {
	a := sine(440, 0.4, 44100, 2, 4410)
	b := sine(440, 0.4, 44100, 2, 4410)

	// A -6 dB layer contributes ~half the amplitude of a 0 dB layer.
	full, err := Mix([]Layer{{Asset: a}}, 44100)
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	attenuated, err := Mix([]Layer{{Asset: b, GainDB: -6}}, 44100)
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	ratio := attenuated.Peak() / full.Peak()
	want := GainFactor(-6)
	if math.Abs(ratio-want) > 0.01 {
		t.Errorf("-6 dB layer: expected peak ratio %.3f, got %.3f", want, ratio)
	}
}

func TestMix_RescalesInsteadOfClipping(t *testing.T) {
	a := sine(440, 0.9, 44100, 2, 44100)
	b := sine(440, 0.9, 44100, 2, 44100) // in phase, sum peaks at 1.8

	out, err := Mix([]Layer{{Asset: a}, {Asset: b}}, 44100)
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	peak := out.Peak()
	if peak > 1.0000001 {
		t.Errorf("master clips: peak %.4f", peak)
	}
	if peak < 0.99 {
		t.Errorf("rescale overshot: peak %.4f, expected ~1.0", peak)
	}
}

func TestMix_ResamplesLayersToMasterRate(t *testing.T) {
	voice := sine(440, 0.5, 44100, 2, 44100)
	bed := sine(110, 0.3, 22050, 2, 22050) // same 1 s duration at half the rate

	out, err := Mix([]Layer{{Asset: voice}, {Asset: bed}}, 44100)
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	if out.SampleRate != 44100 {
		t.Errorf("expected 44100 Hz master, got %d", out.SampleRate)
	}
	if got := out.Duration(); math.Abs(got-1.0) > 0.01 {
		t.Errorf("expected ~1 s master, got %.3f s", got)
	}
}

func TestMix_PreservesBinauralChannelContent(t *testing.T) {
	// A layer with distinct channel content must not be collapsed.
	tone := NewAsset(44100, 2, 44100)
	stepL := 2 * math.Pi * 100 / 44100.0
	stepR := 2 * math.Pi * 107 / 44100.0
	for f := 0; f < 44100; f++ {
		tone.Samples[f*2] = 0.5 * math.Sin(stepL*float64(f))
		tone.Samples[f*2+1] = 0.5 * math.Sin(stepR*float64(f))
	}

	out, err := Mix([]Layer{{Asset: tone}}, 44100)
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	var diff float64
	for f := 0; f < out.Frames(); f++ {
		diff += math.Abs(out.Samples[f*2] - out.Samples[f*2+1])
	}
	if diff < 1 {
		t.Errorf("channel content collapsed: cumulative L/R difference %.4f", diff)
	}
}
