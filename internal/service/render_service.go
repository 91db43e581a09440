package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/auralane/render-service/internal/model"
	"github.com/auralane/render-service/internal/store"
)

// TaskTypeRender is the asynq task type for render jobs.
const TaskTypeRender = "render:process"

// QueueRender is the asynq queue render tasks are published to.
const QueueRender = "render"

// ErrInvalidConfig marks cross-field jobData validation failures caught at
// intake, before a job record exists.
var ErrInvalidConfig = errors.New("invalid track configuration")

// RenderService owns job intake, the status/cancel surface and requeueing.
// The pipeline itself lives in the worker package.
type RenderService struct {
	jobs        *store.JobStore
	asynqClient *asynq.Client
}

func NewRenderService(jobs *store.JobStore, asynqClient *asynq.Client) *RenderService {
	return &RenderService{
		jobs:        jobs,
		asynqClient: asynqClient,
	}
}

// ValidateConfig performs the cross-field checks that struct tags cannot
// express. Runs once at intake; the pipeline never re-validates.
func ValidateConfig(cfg *model.TrackConfig) error {
	if cfg.Binaural != nil && cfg.Output.Channels == 1 {
		return fmt.Errorf("%w: binaural beats require stereo output, mono requested", ErrInvalidConfig)
	}
	return nil
}

// StartRender creates a pending job and enqueues it for processing.
func (s *RenderService) StartRender(ctx context.Context, userID string, req *model.RenderStartRequest) (*model.RenderStartResponse, error) {
	if err := ValidateConfig(&req.Config); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &model.RenderJob{
		ID:        uuid.New().String(),
		TrackID:   req.TrackID,
		UserID:    userID,
		Status:    model.JobStatusPending,
		Progress:  0,
		Config:    req.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.enqueue(job.ID); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &model.RenderStartResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: now,
	}, nil
}

// GetJob returns the raw job record (for ownership checks).
func (s *RenderService) GetJob(ctx context.Context, jobID string) (*model.RenderJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// GetStatus returns the poll projection of a job. Reads straight from the
// record store, so polling always observes the live state.
func (s *RenderService) GetStatus(ctx context.Context, jobID string) (*model.RenderStatusResponse, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.StatusView(), nil
}

// Cancel requests cooperative cancellation. Only pending and processing
// jobs can be cancelled; the store rejects everything else with an
// InvalidTransitionError naming the blocking status. A pending job is
// removed from the claimable index in the same transaction, so it can
// never be claimed afterwards.
func (s *RenderService) Cancel(ctx context.Context, jobID, reason string) (*model.RenderCancelResponse, error) {
	job, err := s.jobs.Cancel(ctx, jobID, reason)
	if err != nil {
		return nil, err
	}
	return &model.RenderCancelResponse{
		Success: true,
		JobID:   job.ID,
		Status:  job.Status,
	}, nil
}

// RequeueStale re-enqueues processing jobs whose claim lease expired,
// typically because a worker crashed mid-pipeline. The claim CAS lets the
// next worker take over; this is delivery only, state is untouched here.
func (s *RenderService) RequeueStale(ctx context.Context) (int, error) {
	ids, err := s.jobs.StaleProcessing(ctx)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, id := range ids {
		if err := s.enqueue(id); err != nil {
			log.Printf("[sweeper] failed to requeue job %s: %v", id, err)
			continue
		}
		requeued++
	}
	return requeued, nil
}

func (s *RenderService) enqueue(jobID string) error {
	payload, err := json.Marshal(renderTaskPayload{JobID: jobID})
	if err != nil {
		return err
	}
	// Retries are owned by the queue layer, never by the pipeline; a
	// failed job stays failed.
	_, err = s.asynqClient.Enqueue(asynq.NewTask(TaskTypeRender, payload),
		asynq.Queue(QueueRender),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	return err
}

type renderTaskPayload struct {
	JobID string `json:"jobId"`
}

// DecodeRenderTask extracts the job ID from an asynq task payload.
func DecodeRenderTask(payload []byte) (string, error) {
	var p renderTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if p.JobID == "" {
		return "", errors.New("task payload missing jobId")
	}
	return p.JobID, nil
}
