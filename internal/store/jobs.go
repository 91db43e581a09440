// Package store persists render job records in Redis and owns every
// status transition. All mutations go through optimistic WATCH/MULTI
// transactions so concurrent workers and the cancellation API can never
// corrupt the state machine.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auralane/render-service/internal/model"
)

var (
	ErrNotFound = errors.New("job not found")

	// ErrNotClaimable is returned when a claim races with another worker
	// or targets a job that is no longer pending. Callers treat it as
	// "no job available", not as a failure.
	ErrNotClaimable = errors.New("job not claimable")

	// ErrNoJobs means the pending index is empty.
	ErrNoJobs = errors.New("no pending jobs")

	// ErrNotProcessing is returned for progress writes against a job the
	// caller no longer owns.
	ErrNotProcessing = errors.New("job is not processing")

	// ErrProgressRegression guards the monotonic progress invariant.
	ErrProgressRegression = errors.New("progress may not decrease")
)

// InvalidTransitionError names the status that blocked a transition.
type InvalidTransitionError struct {
	From model.JobStatus
	To   model.JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition job from %s to %s", e.From, e.To)
}

const (
	pendingIndexKey    = "renderjobs:pending"
	processingIndexKey = "renderjobs:processing"
)

func jobKey(id string) string {
	return "renderjob:" + id
}

// JobStore is the Redis-backed job record store.
type JobStore struct {
	rdb   *redis.Client
	ttl   time.Duration
	lease time.Duration
}

// NewJobStore creates a store. ttl bounds record retention; lease is how
// long a processing job may go without a write before another worker may
// reclaim it.
func NewJobStore(rdb *redis.Client, ttl, lease time.Duration) *JobStore {
	return &JobStore{rdb: rdb, ttl: ttl, lease: lease}
}

// Create persists a new pending job and indexes it for claiming.
func (s *JobStore) Create(ctx context.Context, job *model.RenderJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), data, s.ttl)
		pipe.SAdd(ctx, pendingIndexKey, job.ID)
		return nil
	})
	return err
}

// Get loads a job record.
func (s *JobStore) Get(ctx context.Context, id string) (*model.RenderJob, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var job model.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Claim atomically takes ownership of a job: pending -> processing with
// progress reset to 0 and the worker identity recorded. A processing job
// whose last write is older than the claim lease is also claimable, so
// jobs orphaned by a crashed worker can be taken over. Exactly one of N
// concurrent claimers succeeds; the rest get ErrNotClaimable.
func (s *JobStore) Claim(ctx context.Context, id, workerID string) (*model.RenderJob, error) {
	var claimed *model.RenderJob

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, jobKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var job model.RenderJob
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}

		now := time.Now().UTC()
		switch {
		case job.Status == model.JobStatusPending:
		case job.Status == model.JobStatusProcessing && now.Sub(job.UpdatedAt) > s.lease:
			// Lease expired: the previous owner stopped writing.
		default:
			return ErrNotClaimable
		}

		job.Status = model.JobStatusProcessing
		job.Progress = 0
		job.Stage = model.StageClaimed
		job.WorkerID = workerID
		job.ClaimedAt = &now
		job.UpdatedAt = now

		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, jobKey(id), out, s.ttl)
			pipe.SRem(ctx, pendingIndexKey, id)
			pipe.SAdd(ctx, processingIndexKey, id)
			return nil
		})
		if err == nil {
			claimed = &job
		}
		return err
	}, jobKey(id))

	if errors.Is(err, redis.TxFailedErr) {
		// Lost the race to a concurrent claim or cancel.
		return nil, ErrNotClaimable
	}
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ClaimNext claims any pending job, or returns ErrNoJobs.
func (s *JobStore) ClaimNext(ctx context.Context, workerID string) (*model.RenderJob, error) {
	ids, err := s.rdb.SMembers(ctx, pendingIndexKey).Result()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		job, err := s.Claim(ctx, id, workerID)
		if err == nil {
			return job, nil
		}
		if errors.Is(err, ErrNotClaimable) || errors.Is(err, ErrNotFound) {
			// Raced with another worker or a cancel; drop stale index
			// entries for vanished records.
			if errors.Is(err, ErrNotFound) {
				s.rdb.SRem(ctx, pendingIndexKey, id)
			}
			continue
		}
		return nil, err
	}
	return nil, ErrNoJobs
}

// UpdateProgress writes a progress checkpoint. Only the processing state
// accepts progress writes, values may never decrease within a claim, and
// updatedAt advances on every write (it doubles as the claim heartbeat).
func (s *JobStore) UpdateProgress(ctx context.Context, id string, progress int, stage string) error {
	return s.mutate(ctx, id, func(job *model.RenderJob) error {
		if job.Status != model.JobStatusProcessing {
			return fmt.Errorf("%w: status is %s", ErrNotProcessing, job.Status)
		}
		if progress < job.Progress {
			return fmt.Errorf("%w: %d < %d", ErrProgressRegression, progress, job.Progress)
		}
		job.Progress = progress
		job.Stage = stage
		return nil
	}, nil)
}

// Complete finishes a job: processing -> completed with progress 100 and
// the result attached. Result is set here and nowhere else.
func (s *JobStore) Complete(ctx context.Context, id string, result *model.RenderResult) error {
	return s.mutate(ctx, id, func(job *model.RenderJob) error {
		if !job.Status.CanTransition(model.JobStatusCompleted) {
			return &InvalidTransitionError{From: job.Status, To: model.JobStatusCompleted}
		}
		job.Status = model.JobStatusCompleted
		job.Progress = 100
		job.Stage = model.StageFinalize
		job.Result = result
		job.Error = nil
		return nil
	}, func(pipe redis.Pipeliner) {
		pipe.SRem(ctx, processingIndexKey, id)
	})
}

// Fail terminates a job with an error message. Progress is left where the
// failing stage stopped.
func (s *JobStore) Fail(ctx context.Context, id, message string) error {
	return s.mutate(ctx, id, func(job *model.RenderJob) error {
		if !job.Status.CanTransition(model.JobStatusFailed) {
			return &InvalidTransitionError{From: job.Status, To: model.JobStatusFailed}
		}
		job.Status = model.JobStatusFailed
		job.Error = &message
		job.Result = nil
		return nil
	}, func(pipe redis.Pipeliner) {
		pipe.SRem(ctx, processingIndexKey, id)
	})
}

// Cancel moves a pending or processing job to cancelled. Any other state
// yields an InvalidTransitionError naming the blocking status. A running
// worker observes the new status at its next stage boundary.
func (s *JobStore) Cancel(ctx context.Context, id, reason string) (*model.RenderJob, error) {
	var out *model.RenderJob
	err := s.mutate(ctx, id, func(job *model.RenderJob) error {
		if !job.Status.CanTransition(model.JobStatusCancelled) {
			return &InvalidTransitionError{From: job.Status, To: model.JobStatusCancelled}
		}
		job.Status = model.JobStatusCancelled
		if reason != "" {
			job.CancelReason = &reason
		}
		return nil
	}, func(pipe redis.Pipeliner) {
		pipe.SRem(ctx, pendingIndexKey, id)
		pipe.SRem(ctx, processingIndexKey, id)
	})
	if err != nil {
		return nil, err
	}
	out, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StaleProcessing lists processing jobs whose claim lease has expired.
// Used by the orphan sweeper to re-enqueue work from crashed workers.
func (s *JobStore) StaleProcessing(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, processingIndexKey).Result()
	if err != nil {
		return nil, err
	}
	var stale []string
	now := time.Now().UTC()
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.rdb.SRem(ctx, processingIndexKey, id)
				continue
			}
			return nil, err
		}
		if job.Status == model.JobStatusProcessing && now.Sub(job.UpdatedAt) > s.lease {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

// mutate runs a WATCH-guarded read-modify-write on one job record, with an
// optional extra pipeline step for index maintenance.
func (s *JobStore) mutate(ctx context.Context, id string, fn func(*model.RenderJob) error, extra func(redis.Pipeliner)) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, jobKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var job model.RenderJob
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}

		if err := fn(&job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, jobKey(id), out, s.ttl)
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		return err
	}, jobKey(id))

	if errors.Is(err, redis.TxFailedErr) {
		// Concurrent writer; surface as a claim-style race.
		return ErrNotClaimable
	}
	return err
}
