// Package worker runs the render pipeline for claimed jobs: voice
// synthesis, optional music and tone layers, mixing, encoding and upload,
// with a progress checkpoint after every stage.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/auralane/render-service/internal/audio"
	"github.com/auralane/render-service/internal/client"
	"github.com/auralane/render-service/internal/events"
	"github.com/auralane/render-service/internal/model"
	"github.com/auralane/render-service/internal/provider"
	"github.com/auralane/render-service/internal/service"
	"github.com/auralane/render-service/internal/store"
	"github.com/auralane/render-service/internal/synth"
)

// Progress checkpoints are part of the external contract: each value is
// written after its stage finishes and observed verbatim by pollers.
const (
	progressVoice     = 30
	progressMusic     = 40
	progressSolfeggio = 45
	progressBinaural  = 50
	progressMix       = 85
	progressUpload    = 95
)

// errStopped aborts the pipeline without failing the job, used when
// cancellation is observed at a stage boundary.
var errStopped = errors.New("pipeline stopped")

// RenderWorker processes render jobs.
type RenderWorker struct {
	jobs          *store.JobStore
	providers     *provider.Registry
	storage       client.StorageClient
	encoder       audio.Encoder
	hub           *events.Hub
	maxAssetBytes int64
	id            string
}

// NewRenderWorker creates a worker with its collaborators injected, so
// several instances can run against the same job store.
func NewRenderWorker(jobs *store.JobStore, providers *provider.Registry, storage client.StorageClient, encoder audio.Encoder, hub *events.Hub, maxAssetBytes int64) *RenderWorker {
	host, _ := os.Hostname()
	return &RenderWorker{
		jobs:          jobs,
		providers:     providers,
		storage:       storage,
		encoder:       encoder,
		hub:           hub,
		maxAssetBytes: maxAssetBytes,
		id:            fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
	}
}

// ID returns the worker identity recorded on claimed jobs.
func (w *RenderWorker) ID() string { return w.id }

// ProcessTask handles one queued render task.
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	jobID, err := service.DecodeRenderTask(t.Payload())
	if err != nil {
		return err
	}

	job, err := w.jobs.Claim(ctx, jobID, w.id)
	if err != nil {
		if errors.Is(err, store.ErrNotClaimable) || errors.Is(err, store.ErrNotFound) {
			// Another worker owns it, or it was cancelled before claim.
			log.Printf("[worker %s] job %s not claimable: %v", w.id, jobID, err)
			return nil
		}
		return err
	}

	log.Printf("[worker %s] claimed render job %s (track %s)", w.id, job.ID, job.TrackID)
	return w.render(ctx, job)
}

// render runs all pipeline stages for one claimed job. Working storage is
// confined to a per-job temp directory that is removed on every exit path.
func (w *RenderWorker) render(ctx context.Context, job *model.RenderJob) error {
	workdir, err := os.MkdirTemp("", "render-"+job.ID)
	if err != nil {
		return w.failJob(ctx, job.ID, model.StageVoiceSynthesis, fmt.Errorf("failed to create workdir: %w", err))
	}
	defer os.RemoveAll(workdir)

	cfg := job.Config
	out := cfg.Output
	mixRate := out.Quality.SampleRate()

	// Stage 1: voice synthesis.
	if err := w.beginStage(ctx, job.ID, model.StageVoiceSynthesis); err != nil {
		return w.stopped(job.ID, err)
	}
	syn, err := w.providers.Get(cfg.Voice.Provider)
	if err != nil {
		return w.failJob(ctx, job.ID, model.StageVoiceSynthesis, err)
	}
	voice, err := syn.Synthesize(ctx, cfg.Script, cfg.Voice)
	if err != nil {
		return w.failJob(ctx, job.ID, model.StageVoiceSynthesis, err)
	}
	voice = voice.Stereo().Resample(mixRate)
	if err := w.checkpoint(ctx, job.ID, progressVoice, model.StageVoiceSynthesis); err != nil {
		return w.stopped(job.ID, err)
	}

	// The voice layer defines the master length; tone layers default to
	// the script's estimated narration time.
	layers := []audio.Layer{{Asset: voice}}
	estimated := synth.EstimateSpeechDuration(cfg.Script)

	// Stage 2: background music, only if configured.
	if bm := cfg.BackgroundMusic; bm != nil {
		if err := w.beginStage(ctx, job.ID, model.StageBackgroundPrep); err != nil {
			return w.stopped(job.ID, err)
		}
		data, err := w.storage.Download(ctx, musicAssetKey(bm.AssetID), w.maxAssetBytes)
		if err != nil {
			return w.failJob(ctx, job.ID, model.StageBackgroundPrep, err)
		}
		bed, err := audio.DecodeWAV(data)
		if err != nil {
			return w.failJob(ctx, job.ID, model.StageBackgroundPrep, err)
		}
		layers = append(layers, audio.Layer{Asset: bed, GainDB: bm.GainDB})
		if err := w.checkpoint(ctx, job.ID, progressMusic, model.StageBackgroundPrep); err != nil {
			return w.stopped(job.ID, err)
		}
	}

	// Stage 3: solfeggio tone, only if configured.
	if sp := cfg.Solfeggio; sp != nil {
		if err := w.beginStage(ctx, job.ID, model.StageSolfeggio); err != nil {
			return w.stopped(job.ID, err)
		}
		dur := estimated
		if sp.DurationSeconds != nil {
			dur = *sp.DurationSeconds
		}
		layers = append(layers, audio.Layer{Asset: synth.Solfeggio(sp.FrequencyHz, dur, sp.GainDB, mixRate)})
		if err := w.checkpoint(ctx, job.ID, progressSolfeggio, model.StageSolfeggio); err != nil {
			return w.stopped(job.ID, err)
		}
	}

	// Stage 4: binaural beat, only if configured.
	if bp := cfg.Binaural; bp != nil {
		if err := w.beginStage(ctx, job.ID, model.StageBinaural); err != nil {
			return w.stopped(job.ID, err)
		}
		dur := estimated
		if bp.DurationSeconds != nil {
			dur = *bp.DurationSeconds
		}
		layers = append(layers, audio.Layer{Asset: synth.Binaural(bp.BaseFrequencyHz, bp.BeatFrequencyHz, dur, bp.GainDB, mixRate)})
		if err := w.checkpoint(ctx, job.ID, progressBinaural, model.StageBinaural); err != nil {
			return w.stopped(job.ID, err)
		}
	}

	// Stage 5: mix, normalize after mixing (never before, so per-layer
	// gains stay meaningful), then encode.
	if err := w.beginStage(ctx, job.ID, model.StageMixing); err != nil {
		return w.stopped(job.ID, err)
	}
	master, err := audio.Mix(layers, mixRate)
	if err != nil {
		return w.failJob(ctx, job.ID, model.StageMixing, err)
	}
	if out.Normalize {
		audio.Normalize(master, out.TargetLufs(), audio.DefaultPeakCeilingDB)
	}
	encoded, err := w.encoder.Encode(ctx, master, out.Format, out.Quality, workdir)
	if err != nil {
		return w.failJob(ctx, job.ID, model.StageMixing, err)
	}
	if err := w.checkpoint(ctx, job.ID, progressMix, model.StageMixing); err != nil {
		return w.stopped(job.ID, err)
	}

	// Stage 6: upload under a render-unique key.
	if err := w.beginStage(ctx, job.ID, model.StageUpload); err != nil {
		return w.stopped(job.ID, err)
	}
	key := renderKey(job.TrackID, out.Format)
	url, err := w.storage.Upload(ctx, key, bytes.NewReader(encoded), out.Format.ContentType())
	if err != nil {
		return w.failJob(ctx, job.ID, model.StageUpload, err)
	}
	if err := w.checkpoint(ctx, job.ID, progressUpload, model.StageUpload); err != nil {
		return w.stopped(job.ID, err)
	}

	// Stage 7: finalize.
	result := &model.RenderResult{
		URL:             url,
		DurationSeconds: master.Duration(),
		SizeBytes:       int64(len(encoded)),
		Format:          out.Format,
	}
	if err := w.jobs.Complete(ctx, job.ID, result); err != nil {
		var ite *store.InvalidTransitionError
		if errors.As(err, &ite) {
			// Cancelled between upload and finalize; the artifact stays
			// uploaded, the record stays cancelled.
			return w.stopped(job.ID, errStopped)
		}
		return w.failJob(ctx, job.ID, model.StageFinalize, err)
	}

	w.hub.BroadcastProgress(job.ID, 100, model.JobStatusCompleted, model.StageFinalize)
	w.hub.BroadcastComplete(job.ID, result)
	log.Printf("[worker %s] render job %s completed (%s, %.1fs, %d bytes)",
		w.id, job.ID, result.Format, result.DurationSeconds, result.SizeBytes)
	return nil
}

// beginStage records the stage label before the stage runs. It doubles as
// the cooperative cancellation check: a cancelled job is no longer
// processing, so the write is rejected and the pipeline stops advancing.
func (w *RenderWorker) beginStage(ctx context.Context, jobID, stage string) error {
	if err := ctx.Err(); err != nil {
		return errStopped
	}
	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := w.jobs.UpdateProgress(ctx, jobID, job.Progress, stage); err != nil {
		if errors.Is(err, store.ErrNotProcessing) {
			return errStopped
		}
		return err
	}
	return nil
}

// checkpoint records stage completion and broadcasts it.
func (w *RenderWorker) checkpoint(ctx context.Context, jobID string, progress int, stage string) error {
	if err := w.jobs.UpdateProgress(ctx, jobID, progress, stage); err != nil {
		if errors.Is(err, store.ErrNotProcessing) {
			return errStopped
		}
		return err
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusProcessing, stage)
	return nil
}

// stopped ends the pipeline without touching job state. Cancellation is
// cooperative: whatever stage already ran keeps its side effects.
func (w *RenderWorker) stopped(jobID string, err error) error {
	if errors.Is(err, errStopped) {
		log.Printf("[worker %s] render job %s stopped at stage boundary", w.id, jobID)
		return nil
	}
	return err
}

// failJob terminates the job with the stage name prefixed to the cause.
// No automatic retry happens here; retry policy belongs to the queue.
func (w *RenderWorker) failJob(ctx context.Context, jobID, stage string, cause error) error {
	msg := fmt.Sprintf("%s: %v", stage, cause)
	if err := w.jobs.Fail(ctx, jobID, msg); err != nil {
		log.Printf("[worker %s] failed to mark job %s failed: %v", w.id, jobID, err)
	}
	w.hub.BroadcastError(jobID, "RENDER_FAILED", msg)
	log.Printf("[worker %s] render job %s failed: %s", w.id, jobID, msg)
	return cause
}

func musicAssetKey(assetID string) string {
	return fmt.Sprintf("assets/music/%s.wav", assetID)
}

// renderKey is unique per render so re-renders of a track never overwrite
// earlier artifacts.
func renderKey(trackID string, format model.Format) string {
	return fmt.Sprintf("renders/%s/%d.%s", trackID, time.Now().UnixNano(), format)
}
