package synth

import (
	"math"
	"strings"
)

// SpokenWordsPerMinute is the pace assumed when estimating how long a
// script will take to narrate.
const SpokenWordsPerMinute = 150

// EstimateSpeechDuration returns the expected narration length of a script
// in whole seconds: ceil(words / 150 * 60). Tone layers use this when no
// explicit duration is configured.
func EstimateSpeechDuration(script string) float64 {
	words := len(strings.Fields(script))
	if words == 0 {
		return 0
	}
	return math.Ceil(float64(words) / SpokenWordsPerMinute * 60)
}
