// Package audio holds the PCM asset type and the mixing, loudness and
// encoding operations of the render pipeline. All intermediate processing
// happens on interleaved float64 samples in [-1, 1]; containers and codecs
// only appear at the edges (WAV in/out, ffmpeg for MP3).
package audio

import (
	"math"
)

// Asset is an in-memory PCM audio buffer.
type Asset struct {
	SampleRate int
	Channels   int
	// Samples is interleaved, one float64 per channel per frame, in [-1, 1].
	Samples []float64
}

// NewAsset allocates a silent asset of the given shape.
func NewAsset(sampleRate, channels, frames int) *Asset {
	return &Asset{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    make([]float64, frames*channels),
	}
}

// Frames returns the number of sample frames.
func (a *Asset) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the playback length in seconds.
func (a *Asset) Duration() float64 {
	if a.SampleRate == 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

// Peak returns the largest absolute sample value.
func (a *Asset) Peak() float64 {
	peak := 0.0
	for _, s := range a.Samples {
		if v := math.Abs(s); v > peak {
			peak = v
		}
	}
	return peak
}

// GainFactor converts decibels to a linear multiplier.
func GainFactor(db float64) float64 {
	return math.Pow(10, db/20)
}

// ApplyGain scales all samples by the given decibel amount in place.
func (a *Asset) ApplyGain(db float64) {
	f := GainFactor(db)
	for i := range a.Samples {
		a.Samples[i] *= f
	}
}

// Stereo returns a two-channel view of the asset. Mono input is duplicated
// onto both channels; inputs with more than two channels keep their first
// two. The receiver is returned unchanged when already stereo.
func (a *Asset) Stereo() *Asset {
	if a.Channels == 2 {
		return a
	}
	out := NewAsset(a.SampleRate, 2, a.Frames())
	frames := a.Frames()
	for i := 0; i < frames; i++ {
		left := a.Samples[i*a.Channels]
		right := left
		if a.Channels > 1 {
			right = a.Samples[i*a.Channels+1]
		}
		out.Samples[i*2] = left
		out.Samples[i*2+1] = right
	}
	return out
}

// Resample converts the asset to the target rate using linear
// interpolation per channel. Good enough for speech and pure tones; the
// encoder is the final arbiter of output fidelity.
func (a *Asset) Resample(rate int) *Asset {
	if rate == a.SampleRate || a.Frames() == 0 {
		return a
	}
	srcFrames := a.Frames()
	dstFrames := int(math.Round(float64(srcFrames) * float64(rate) / float64(a.SampleRate)))
	if dstFrames < 1 {
		dstFrames = 1
	}
	out := NewAsset(rate, a.Channels, dstFrames)
	step := float64(srcFrames-1) / float64(dstFrames-1)
	if dstFrames == 1 {
		step = 0
	}
	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		i1 := i0 + 1
		if i1 >= srcFrames {
			i1 = srcFrames - 1
		}
		frac := pos - float64(i0)
		for c := 0; c < a.Channels; c++ {
			s0 := a.Samples[i0*a.Channels+c]
			s1 := a.Samples[i1*a.Channels+c]
			out.Samples[i*a.Channels+c] = s0 + (s1-s0)*frac
		}
	}
	return out
}
