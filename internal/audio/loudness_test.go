package audio

import (
	"math"
	"testing"
)

func TestIntegratedLoudness_Silence(t *testing.T) {
	a := NewAsset(44100, 2, 44100)
	if got := IntegratedLoudness(a); !math.IsInf(got, -1) {
		t.Errorf("expected -Inf for silence, got %.2f", got)
	}
}

func TestIntegratedLoudness_GainShiftsMeasurement(t *testing.T) {
	a := sine(440, 0.5, 44100, 2, 5*44100)
	before := IntegratedLoudness(a)

	a.ApplyGain(-6)
	after := IntegratedLoudness(a)

	if shift := before - after; math.Abs(shift-6) > 0.2 {
		t.Errorf("-6 dB gain shifted loudness by %.2f LU, expected ~6", shift)
	}
}

func TestNormalize_ReachesTarget(t *testing.T) {
	a := sine(440, 0.1, 44100, 2, 5*44100) // quiet source, far from target

	Normalize(a, -16, DefaultPeakCeilingDB)

	got := IntegratedLoudness(a)
	if math.Abs(got-(-16)) > 0.5 {
		t.Errorf("normalized loudness %.2f LUFS, expected ~-16", got)
	}
}

func TestNormalize_PeakCeilingWins(t *testing.T) {
	// A near-full-scale tone cannot be pushed to a hot target without
	// breaking the ceiling; gain must back off instead.
	a := sine(440, 0.9, 44100, 2, 5*44100)

	Normalize(a, -1, DefaultPeakCeilingDB)

	ceiling := GainFactor(DefaultPeakCeilingDB)
	if peak := a.Peak(); peak > ceiling+1e-9 {
		t.Errorf("peak %.4f exceeds ceiling %.4f", peak, ceiling)
	}
}

func TestNormalize_SilenceUntouched(t *testing.T) {
	a := NewAsset(44100, 2, 44100)
	Normalize(a, -16, DefaultPeakCeilingDB)
	if peak := a.Peak(); peak != 0 {
		t.Errorf("silence gained content: peak %.6f", peak)
	}
}
