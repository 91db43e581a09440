package model

// TrackConfig is the declarative description of a track render, validated
// once at intake and treated as immutable by the pipeline.
type TrackConfig struct {
	Script          string               `json:"script" validate:"required,min=1,max=20000"`
	Voice           VoiceSelection       `json:"voice" validate:"required"`
	BackgroundMusic *BackgroundMusicSpec `json:"backgroundMusic,omitempty"`
	Solfeggio       *SolfeggioSpec       `json:"solfeggio,omitempty"`
	Binaural        *BinauralSpec        `json:"binaural,omitempty"`
	Output          OutputSpec           `json:"output" validate:"required"`
}

// VoiceSelection picks a provider and a voice, with optional
// provider-specific settings. Unknown providers fail closed at render time.
type VoiceSelection struct {
	Provider string         `json:"provider" validate:"required,min=1,max=64"`
	VoiceID  string         `json:"voiceId" validate:"required,min=1,max=128"`
	Settings *VoiceSettings `json:"settings,omitempty"`
}

// VoiceSettings carries per-provider tuning. Each adapter reads only the
// fields it understands.
type VoiceSettings struct {
	// ElevenLabs voice controls.
	Stability       *float64 `json:"stability,omitempty" validate:"omitempty,gte=0,lte=1"`
	SimilarityBoost *float64 `json:"similarityBoost,omitempty" validate:"omitempty,gte=0,lte=1"`
	// Speaking rate multiplier (OpenAI and ElevenLabs).
	Speed *float64 `json:"speed,omitempty" validate:"omitempty,gte=0.25,lte=4"`
	// Provider model override.
	Model string `json:"model,omitempty" validate:"omitempty,max=64"`
}

// BackgroundMusicSpec references a pre-existing music bed by asset ID.
type BackgroundMusicSpec struct {
	AssetID string  `json:"assetId" validate:"required,min=1,max=128"`
	GainDB  float64 `json:"gainDb" validate:"gte=-60,lte=12"`
}

// SolfeggioSpec layers a sustained single-frequency tone under the voice.
type SolfeggioSpec struct {
	FrequencyHz float64 `json:"frequencyHz" validate:"gt=0,lte=20000"`
	GainDB      float64 `json:"gainDb" validate:"gte=-60,lte=12"`
	// Optional explicit duration. When absent the tone length is estimated
	// from the script at 150 words per minute.
	DurationSeconds *float64 `json:"durationSeconds,omitempty" validate:"omitempty,gt=0,lte=7200"`
}

// BinauralSpec layers a dual-channel beat: left at the base frequency,
// right at base + beat. The per-channel offset is the entrainment
// mechanism and is never mono-summed.
type BinauralSpec struct {
	BaseFrequencyHz float64  `json:"baseFrequencyHz" validate:"gt=0,lte=1500"`
	BeatFrequencyHz float64  `json:"beatFrequencyHz" validate:"gt=0,lte=40"`
	GainDB          float64  `json:"gainDb" validate:"gte=-60,lte=12"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty" validate:"omitempty,gt=0,lte=7200"`
}

// OutputSpec selects encoding and loudness treatment for the master.
type OutputSpec struct {
	Format  Format  `json:"format" validate:"required,oneof=mp3 wav"`
	Quality Quality `json:"quality" validate:"required,oneof=low medium high"`
	// Channels may be 1 or 2; 0 means the default of 2. A mono request is
	// rejected at intake when a binaural layer is configured.
	Channels           int      `json:"channels,omitempty" validate:"omitempty,oneof=1 2"`
	Normalize          bool     `json:"normalize"`
	TargetLoudnessLufs *float64 `json:"targetLoudnessLufs,omitempty" validate:"omitempty,gte=-36,lte=-6"`
}

// DefaultTargetLoudnessLufs is used when normalize is requested without an
// explicit target.
const DefaultTargetLoudnessLufs = -16.0

// TargetLufs returns the effective normalization target.
func (o OutputSpec) TargetLufs() float64 {
	if o.TargetLoudnessLufs != nil {
		return *o.TargetLoudnessLufs
	}
	return DefaultTargetLoudnessLufs
}
