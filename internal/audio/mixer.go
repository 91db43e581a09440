package audio

import (
	"errors"
)

var ErrNoLayers = errors.New("audio: mix requires at least one layer")

// Layer is one input to the mixer with its per-layer gain. Gains are
// applied before summation so they stay meaningful even when the master is
// normalized afterwards.
type Layer struct {
	Asset  *Asset
	GainDB float64
}

// Mix sums all layers into one stereo master at the given sample rate.
//
// The first layer defines the output length: shorter layers drop out,
// longer layers are truncated. Every input is forced to two channels
// before summation, so binaural layers keep their per-channel content and
// mono layers appear centered.
func Mix(layers []Layer, sampleRate int) (*Asset, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}

	prepared := make([]*Asset, len(layers))
	gains := make([]float64, len(layers))
	for i, l := range layers {
		if l.Asset == nil || l.Asset.Frames() == 0 {
			return nil, errors.New("audio: mix layer is empty")
		}
		prepared[i] = l.Asset.Stereo().Resample(sampleRate)
		gains[i] = GainFactor(l.GainDB)
	}

	frames := prepared[0].Frames()
	out := NewAsset(sampleRate, 2, frames)
	for i, layer := range prepared {
		n := layer.Frames()
		if n > frames {
			n = frames
		}
		g := gains[i]
		for f := 0; f < n*2; f++ {
			out.Samples[f] += layer.Samples[f] * g
		}
	}

	// Equal-weight summation can clip; pull the whole master down instead
	// of clamping per sample so relative balance is preserved.
	if peak := out.Peak(); peak > 1 {
		scale := 1 / peak
		for i := range out.Samples {
			out.Samples[i] *= scale
		}
	}

	return out, nil
}
