// The worker reconciles jobs whose owning session disappeared: pending or
// processing rows that have not been touched recently are re-polled
// against the generation service until they resolve, so no job is ever
// stranded mid-flight.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vidforge/internal/adapter/repo"
	"vidforge/internal/domain"
	"vidforge/internal/infra"
	"vidforge/internal/providers/video"
)

// jobAbandonAfter bounds how long a stranded job may stay unresolved
// before it is forced to a timeout failure.
const jobAbandonAfter = 30 * time.Minute

type reconciler struct {
	ctx    context.Context
	cfg    *infra.Config
	jobs   domain.JobRepository
	client video.Generator
	logger infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	w := &reconciler{
		ctx:  ctx,
		cfg:  cfg,
		jobs: repo.NewJobRepository(pool),
		client: video.NewClient(video.Options{
			APIKey:  cfg.GenerationAPIKey,
			BaseURL: cfg.GenerationBaseURL,
			Logger:  &logger,
		}),
		logger: logger,
	}

	if err := w.run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *reconciler) run() error {
	w.logger.Info().Msg("worker: started")
	ticker := time.NewTicker(w.cfg.WorkerSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *reconciler) sweep() {
	cutoff := time.Now().Add(-w.cfg.WorkerStaleAfter)
	stale, err := w.jobs.ListStale(w.ctx, cutoff, w.cfg.WorkerClaimBatch)
	if err != nil {
		w.logger.Error().Err(err).Msg("worker: failed to list stale jobs")
		return
	}
	for _, job := range stale {
		w.reconcile(job)
	}
}

func (w *reconciler) reconcile(job *domain.Job) {
	now := time.Now()

	// A job that never reached the external service cannot make progress
	// without its session; resolve it.
	if job.ExternalJobID == "" {
		job.Fail(domain.NewTimeoutError("session lost before submission"), now)
		w.persist(job)
		return
	}

	res, err := w.client.Poll(w.ctx, job.ExternalJobID)
	if err != nil {
		w.logger.Warn().Err(err).
			Str("job_id", job.ID.String()).
			Msg("worker: poll failed, will retry next sweep")
		return
	}

	switch res.Status {
	case video.RemoteCompleted:
		job.Complete(res.VideoURL, res.ThumbnailURL, res.Metadata, now)
	case video.RemoteFailed:
		msg := res.ErrorMessage
		if msg == "" {
			msg = "generation failed"
		}
		job.Fail(domain.NewAPIError(msg, true), now)
	case video.RemoteCancelled:
		job.Cancel(now)
	default:
		if now.Sub(job.CreatedAt) > jobAbandonAfter {
			job.Fail(domain.NewTimeoutError(
				fmt.Sprintf("no result after %s", jobAbandonAfter)), now)
			break
		}
		stage := domain.JobStage(res.Status)
		status := domain.JobStatusProcessing
		if res.Status == video.RemoteQueued {
			status = domain.JobStatusPending
			stage = domain.StageQueued
		}
		job.Advance(status, stage, res.Progress, res.EstimatedTimeRemaining, now)
	}

	w.persist(job)
	if job.Terminal() {
		w.logger.Info().
			Str("job_id", job.ID.String()).
			Str("status", string(job.Status)).
			Msg("worker: stranded job resolved")
	}
}

func (w *reconciler) persist(job *domain.Job) {
	if err := w.jobs.UpdateLifecycle(w.ctx, job); err != nil {
		w.logger.Error().Err(err).
			Str("job_id", job.ID.String()).
			Msg("worker: failed to persist job")
	}
}
