package model

import "time"

// RenderStartRequest is the intake payload for POST /api/render/start.
type RenderStartRequest struct {
	TrackID string      `json:"trackId" validate:"required,uuid4"`
	Config  TrackConfig `json:"config" validate:"required"`
}

// RenderStartResponse acknowledges a queued job.
type RenderStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// RenderStatusResponse is the poll projection of a job record.
type RenderStatusResponse struct {
	JobID     string        `json:"jobId"`
	TrackID   string        `json:"trackId"`
	Status    JobStatus     `json:"status"`
	Progress  int           `json:"progress"`
	Stage     string        `json:"stage,omitempty"`
	Result    *RenderResult `json:"result,omitempty"`
	Error     *string       `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// RenderCancelRequest carries an optional operator-supplied reason.
type RenderCancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// RenderCancelResponse returns the job record after cancellation.
type RenderCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// StatusView projects a job record for the status API.
func (j *RenderJob) StatusView() *RenderStatusResponse {
	return &RenderStatusResponse{
		JobID:     j.ID,
		TrackID:   j.TrackID,
		Status:    j.Status,
		Progress:  j.Progress,
		Stage:     j.Stage,
		Result:    j.Result,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
