package synth

import (
	"math"
	"testing"
)

// dominantFrequency estimates the strongest frequency of one channel by
// counting zero crossings. Good enough to tell 100 Hz from 107 Hz over a
// few seconds of signal.
func dominantFrequency(samples []float64, channel, channels, sampleRate int) float64 {
	var crossings int
	prev := samples[channel]
	frames := len(samples) / channels
	for f := 1; f < frames; f++ {
		s := samples[f*channels+channel]
		if (prev < 0 && s >= 0) || (prev > 0 && s <= 0) {
			crossings++
		}
		prev = s
	}
	duration := float64(frames) / float64(sampleRate)
	return float64(crossings) / 2 / duration
}

func TestSolfeggio_ChannelsIdentical(t *testing.T) {
	a := Solfeggio(528, 2, 0, 44100)

	if a.Channels != 2 {
		t.Fatalf("expected stereo output, got %d channels", a.Channels)
	}
	if a.Frames() != 2*44100 {
		t.Fatalf("expected %d frames, got %d", 2*44100, a.Frames())
	}
	for f := 0; f < a.Frames(); f++ {
		if a.Samples[f*2] != a.Samples[f*2+1] {
			t.Fatalf("channels diverge at frame %d: L=%f R=%f", f, a.Samples[f*2], a.Samples[f*2+1])
		}
	}

	got := dominantFrequency(a.Samples, 0, 2, 44100)
	if math.Abs(got-528) > 2 {
		t.Errorf("expected ~528 Hz, measured %.1f Hz", got)
	}
}

func TestBinaural_ChannelOffset(t *testing.T) {
	const base, beat = 100.0, 7.0
	a := Binaural(base, beat, 4, 0, 44100)

	left := dominantFrequency(a.Samples, 0, 2, 44100)
	right := dominantFrequency(a.Samples, 1, 2, 44100)

	if math.Abs(left-base) > 1 {
		t.Errorf("left channel: expected ~%.0f Hz, measured %.2f Hz", base, left)
	}
	if math.Abs(right-(base+beat)) > 1 {
		t.Errorf("right channel: expected ~%.0f Hz, measured %.2f Hz", base+beat, right)
	}
	if math.Abs((right-left)-beat) > 1 {
		t.Errorf("channel offset: expected ~%.0f Hz, measured %.2f Hz", beat, right-left)
	}
}

func TestBinaural_GainScalesAmplitude(t *testing.T) {
	loud := Binaural(100, 7, 1, 0, 22050)
	quiet := Binaural(100, 7, 1, -6, 22050)

	lp, qp := loud.Peak(), quiet.Peak()
	ratio := qp / lp
	want := math.Pow(10, -6.0/20)
	if math.Abs(ratio-want) > 0.01 {
		t.Errorf("-6 dB gain: expected peak ratio %.3f, got %.3f", want, ratio)
	}
}

func TestTones_FadeInFromSilence(t *testing.T) {
	a := Solfeggio(528, 2, 0, 44100)
	if first := math.Abs(a.Samples[0]); first > 1e-9 {
		t.Errorf("expected silent first sample, got %f", first)
	}
	lastFrame := a.Frames() - 1
	if last := math.Abs(a.Samples[lastFrame*2]); last > 0.01 {
		t.Errorf("expected faded final sample, got %f", last)
	}
}

func TestEstimateSpeechDuration(t *testing.T) {
	cases := []struct {
		script string
		want   float64
	}{
		{"", 0},
		{"   \n\t  ", 0},
		{"hello", 1},                       // ceil(1/150*60) = 1
		{"calm your mind", 2},              // ceil(3/150*60) = 2
		{words(150), 60},                   // exactly one minute
		{words(151), 61},                   // ceil rounds up
		{words(375), 150},                  // 2.5 minutes exactly
		{"one  two\nthree\t four five", 2}, // whitespace runs collapse
	}
	for _, tc := range cases {
		if got := EstimateSpeechDuration(tc.script); got != tc.want {
			t.Errorf("EstimateSpeechDuration(%q) = %v, want %v", tc.script, got, tc.want)
		}
	}
}

func words(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		out = append(out, 'w', ' ')
	}
	return string(out)
}
