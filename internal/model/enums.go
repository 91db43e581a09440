package model

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the status machine allows s -> to.
// The machine is a strict DAG: pending -> processing -> completed|failed,
// and pending|processing -> cancelled. Terminal states have no exits.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusCancelled
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCancelled
	default:
		return false
	}
}

// Output formats
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

func (f Format) ContentType() string {
	if f == FormatWAV {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// Quality tiers
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// BitrateKbps returns the MP3 bitrate for a quality tier.
func (q Quality) BitrateKbps() int {
	switch q {
	case QualityLow:
		return 96
	case QualityHigh:
		return 320
	default:
		return 192
	}
}

// SampleRate returns the PCM sample rate for a quality tier. It is used
// both as the mixing rate and for WAV output.
func (q Quality) SampleRate() int {
	switch q {
	case QualityLow:
		return 22050
	case QualityHigh:
		return 48000
	default:
		return 44100
	}
}

// Pipeline stage labels. Stage is free text in the job record, but the
// worker only ever writes these values so failures can be attributed.
const (
	StageClaimed        = "claimed"
	StageVoiceSynthesis = "voice synthesis"
	StageBackgroundPrep = "background music preparation"
	StageSolfeggio      = "solfeggio tone synthesis"
	StageBinaural       = "binaural beat synthesis"
	StageMixing         = "mixing"
	StageUpload         = "upload"
	StageFinalize       = "finalization"
)
