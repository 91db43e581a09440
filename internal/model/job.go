package model

import "time"

// RenderJob is the persisted record for one track render.
type RenderJob struct {
	ID       string    `json:"id"`
	TrackID  string    `json:"trackId"`
	UserID   string    `json:"userId"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Stage    string    `json:"stage,omitempty"`

	Config TrackConfig `json:"jobData"`

	Result *RenderResult `json:"result,omitempty"`
	Error  *string       `json:"error,omitempty"`

	// CancelReason is the optional caller-supplied reason recorded when a
	// job is cancelled.
	CancelReason *string `json:"cancelReason,omitempty"`

	// Claim observability. Recorded when a worker takes ownership; not part
	// of the correctness contract.
	WorkerID  string     `json:"workerId,omitempty"`
	ClaimedAt *time.Time `json:"claimedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RenderResult describes the finished artifact. Set if and only if the job
// reached the completed status.
type RenderResult struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds"`
	SizeBytes       int64   `json:"sizeBytes"`
	Format          Format  `json:"format"`
}
