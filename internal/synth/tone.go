// Package synth generates the tone layers of a track: sustained solfeggio
// frequencies and dual-channel binaural beats.
package synth

import (
	"math"

	"github.com/auralane/render-service/internal/audio"
)

// baseAmplitude keeps raw tones well under the voice layer before any
// per-layer gain is applied.
const baseAmplitude = 0.5

// fadeSeconds of raised-cosine fade at both ends avoids clicks when the
// tone starts or stops mid-cycle.
const fadeSeconds = 0.05

// Solfeggio renders a single sine frequency for the given duration with
// identical content on both channels.
func Solfeggio(frequencyHz, durationSeconds, gainDb float64, sampleRate int) *audio.Asset {
	frames := int(math.Round(durationSeconds * float64(sampleRate)))
	out := audio.NewAsset(sampleRate, 2, frames)

	amp := baseAmplitude * audio.GainFactor(gainDb)
	step := 2 * math.Pi * frequencyHz / float64(sampleRate)
	for i := 0; i < frames; i++ {
		s := amp * math.Sin(step*float64(i)) * fade(i, frames, sampleRate)
		out.Samples[i*2] = s
		out.Samples[i*2+1] = s
	}
	return out
}

// Binaural renders the left channel at the base frequency and the right
// channel at base + beat. The channel offset is the entrainment mechanism;
// the two sines are never summed or averaged.
func Binaural(baseFrequencyHz, beatFrequencyHz, durationSeconds, gainDb float64, sampleRate int) *audio.Asset {
	frames := int(math.Round(durationSeconds * float64(sampleRate)))
	out := audio.NewAsset(sampleRate, 2, frames)

	amp := baseAmplitude * audio.GainFactor(gainDb)
	stepL := 2 * math.Pi * baseFrequencyHz / float64(sampleRate)
	stepR := 2 * math.Pi * (baseFrequencyHz + beatFrequencyHz) / float64(sampleRate)
	for i := 0; i < frames; i++ {
		env := amp * fade(i, frames, sampleRate)
		out.Samples[i*2] = env * math.Sin(stepL*float64(i))
		out.Samples[i*2+1] = env * math.Sin(stepR*float64(i))
	}
	return out
}

func fade(i, frames, sampleRate int) float64 {
	fadeFrames := int(fadeSeconds * float64(sampleRate))
	if fadeFrames*2 > frames {
		fadeFrames = frames / 2
	}
	if fadeFrames == 0 {
		return 1
	}
	switch {
	case i < fadeFrames:
		return 0.5 - 0.5*math.Cos(math.Pi*float64(i)/float64(fadeFrames))
	case i >= frames-fadeFrames:
		return 0.5 - 0.5*math.Cos(math.Pi*float64(frames-1-i)/float64(fadeFrames))
	default:
		return 1
	}
}
