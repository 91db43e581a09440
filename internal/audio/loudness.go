package audio

import (
	"math"
)

// Loudness constants. Block size and gates follow the ITU-R BS.1770
// integrated-loudness procedure; the K-weighting pre-filter is omitted,
// which is accurate to within roughly 1 LU for speech-band material.
const (
	loudnessBlockSeconds = 0.4
	absoluteGateLufs     = -70.0
	relativeGateLu       = -10.0

	// DefaultPeakCeilingDB is the sample-peak ceiling applied during
	// normalization, in dBFS.
	DefaultPeakCeilingDB = -1.5
)

// IntegratedLoudness measures gated loudness in LUFS over the whole asset.
// Returns -Inf for silence.
func IntegratedLoudness(a *Asset) float64 {
	blockFrames := int(float64(a.SampleRate) * loudnessBlockSeconds)
	if blockFrames < 1 || a.Frames() == 0 {
		return math.Inf(-1)
	}

	// Mean-square energy per 400 ms block, summed across channels.
	var blocks []float64
	frames := a.Frames()
	for start := 0; start+blockFrames <= frames; start += blockFrames {
		var sum float64
		for f := start; f < start+blockFrames; f++ {
			for c := 0; c < a.Channels; c++ {
				s := a.Samples[f*a.Channels+c]
				sum += s * s
			}
		}
		blocks = append(blocks, sum/float64(blockFrames))
	}
	if len(blocks) == 0 {
		// Shorter than one block: measure the whole thing.
		var sum float64
		for _, s := range a.Samples {
			sum += s * s
		}
		blocks = append(blocks, sum/float64(frames))
	}

	// Absolute gate.
	absGate := lufsToEnergy(absoluteGateLufs)
	var gated []float64
	for _, e := range blocks {
		if e > absGate {
			gated = append(gated, e)
		}
	}
	if len(gated) == 0 {
		return math.Inf(-1)
	}

	// Relative gate at -10 LU below the ungated mean of surviving blocks.
	relGate := mean(gated) * math.Pow(10, relativeGateLu/10)
	var final []float64
	for _, e := range gated {
		if e > relGate {
			final = append(final, e)
		}
	}
	if len(final) == 0 {
		final = gated
	}

	return energyToLufs(mean(final))
}

// Normalize applies a uniform gain so the asset reaches targetLufs, then
// enforces the peak ceiling by reducing gain if needed. Normalization runs
// after mixing, never before.
func Normalize(a *Asset, targetLufs, peakCeilingDb float64) {
	measured := IntegratedLoudness(a)
	if math.IsInf(measured, -1) {
		return // silence stays silent
	}
	gain := GainFactor(targetLufs - measured)

	// Sample-peak ceiling. True-peak oversampling is not worth its cost
	// here; the ceiling leaves headroom for inter-sample peaks.
	ceiling := GainFactor(peakCeilingDb)
	if peak := a.Peak(); peak*gain > ceiling {
		gain = ceiling / peak
	}

	for i := range a.Samples {
		a.Samples[i] *= gain
	}
}

func lufsToEnergy(lufs float64) float64 {
	return math.Pow(10, (lufs+0.691)/10)
}

func energyToLufs(e float64) float64 {
	if e <= 0 {
		return math.Inf(-1)
	}
	return -0.691 + 10*math.Log10(e)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
