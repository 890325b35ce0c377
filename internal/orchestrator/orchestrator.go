// Package orchestrator drives one generation job per user session from
// admission to terminal state: validation, cost reservation, queueing,
// polling the external service, retry policy and cancellation. All job
// mutations happen here; observers only read snapshots.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"vidforge/internal/domain"
	"vidforge/internal/infra"
	"vidforge/internal/pricing"
	"vidforge/internal/providers/prompt"
	"vidforge/internal/providers/video"
	"vidforge/internal/queue"
)

// Config carries the orchestration knobs. Zero values fall back to the
// reference cadence: 3s polls, 60 attempts, 2 retries.
type Config struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	MaxRetries      int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 60
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	return c
}

// Request is a caller-facing submission.
type Request struct {
	Title    string
	Prompt   string
	Settings domain.GenerationSettings
	Priority domain.Priority
}

// Notifier receives exactly one call per tracked job when it reaches a
// terminal state.
type Notifier func(job *domain.Job)

// Orchestrator is the per-user-session state machine. One job may be
// tracked at a time; the queue may hold more entries waiting for a slot.
type Orchestrator struct {
	userID       string
	cfg          Config
	client       video.Generator
	enhancer     prompt.Enhancer
	jobs         domain.JobRepository
	entitlements domain.Entitlements
	queueStore   domain.QueueStateStore
	model        *pricing.Model
	logger       infra.Logger
	validate     *validator.Validate
	notify       Notifier
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	queue     *queue.Manager
	current   *domain.Job
	entry     *domain.QueueEntry
	pollGen   int
	notified  bool
	admitting bool
}

// Options groups the orchestrator's collaborators.
type Options struct {
	UserID       string
	Config       Config
	Client       video.Generator
	Enhancer     prompt.Enhancer
	Jobs         domain.JobRepository
	Entitlements domain.Entitlements
	QueueStore   domain.QueueStateStore
	Pricing      *pricing.Model
	Queue        *queue.Manager
	Logger       infra.Logger
	Notify       Notifier
}

// New constructs an orchestrator bound to ctx; cancelling ctx (or calling
// Close) stops all polling.
func New(ctx context.Context, opts Options) *Orchestrator {
	cctx, cancel := context.WithCancel(ctx)
	q := opts.Queue
	if q == nil {
		q = queue.NewManager(1)
	}
	o := &Orchestrator{
		userID:       opts.UserID,
		cfg:          opts.Config.withDefaults(),
		client:       opts.Client,
		enhancer:     opts.Enhancer,
		jobs:         opts.Jobs,
		entitlements: opts.Entitlements,
		queueStore:   opts.QueueStore,
		model:        opts.Pricing,
		queue:        q,
		logger:       opts.Logger,
		validate:     validator.New(),
		notify:       opts.Notify,
		now:          time.Now,
		ctx:          cctx,
		cancel:       cancel,
	}
	o.restoreQueue()
	return o
}

// restoreQueue rehydrates session-scoped queue state from the snapshot
// store: the paused flag and the observed generation average that seeds
// wait estimates. Entries are not restored; their jobs live in the job
// store and the reconciler worker resolves any left in flight.
func (o *Orchestrator) restoreQueue() {
	if o.queueStore == nil {
		return
	}
	snap, err := o.queueStore.Load(o.ctx, o.userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn().Err(err).
				Str("user_id", o.userID).
				Msg("orchestrator: failed to load queue snapshot")
		}
		return
	}
	if snap.Status == domain.QueuePaused {
		o.queue.Pause()
	}
	if snap.ObservedAverageSeconds > 0 {
		o.queue.Observe(time.Duration(snap.ObservedAverageSeconds) * time.Second)
	}
}

// Close tears the orchestrator down and stops polling immediately.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.pollGen++
	o.mu.Unlock()
	o.cancel()
}

// CurrentJob returns a copy of the tracked job, or nil when idle.
func (o *Orchestrator) CurrentJob() *domain.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	snapshot := *o.current
	return &snapshot
}

// Queue exposes the queue manager for read access.
func (o *Orchestrator) Queue() *queue.Manager {
	return o.queue
}

// Submit admits a request: validates it, checks permission and credits,
// computes and reserves cost, persists the job and enqueues it. Fails
// with ConcurrentGenerationError while another job is tracked.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*domain.Job, error) {
	return o.submit(ctx, req, 0)
}

func (o *Orchestrator) submit(ctx context.Context, req Request, retryCount int) (*domain.Job, error) {
	if gerr := o.validateRequest(req); gerr != nil {
		return nil, gerr
	}

	active, err := o.entitlements.HasActiveSubscription(ctx, o.userID)
	if err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}
	if !active {
		return nil, domain.NewPermissionError("an active subscription is required to generate videos")
	}

	cost := o.model.Compute(req.Settings)
	ok, err := o.entitlements.CanGenerate(ctx, o.userID, cost.TotalCredits)
	if err != nil {
		return nil, fmt.Errorf("check credits: %w", err)
	}
	if !ok {
		return nil, domain.NewPermissionError(
			fmt.Sprintf("insufficient credits: %d required", cost.TotalCredits))
	}

	// The admitting flag reserves the tracked-job slot for the whole
	// admission window; without it two submits racing through the debit
	// and persist calls would both be accepted.
	o.mu.Lock()
	if o.admitting || (o.current != nil && !o.current.Terminal()) {
		o.mu.Unlock()
		return nil, domain.NewConcurrentGenerationError()
	}
	o.admitting = true
	o.mu.Unlock()

	job := domain.NewJob(o.userID, req.Title, req.Prompt, req.Settings, cost.TotalCredits, o.cfg.MaxRetries, o.now())
	job.RetryCount = retryCount

	if err := o.entitlements.DebitCredits(ctx, o.userID, cost.TotalCredits); err != nil {
		o.releaseAdmission()
		return nil, fmt.Errorf("reserve credits: %w", err)
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		o.releaseAdmission()
		return nil, fmt.Errorf("persist job: %w", err)
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	o.mu.Lock()
	o.admitting = false
	o.current = job
	o.entry = o.queue.Enqueue(job, priority)
	o.notified = false
	o.maybeStartLocked()
	o.mu.Unlock()

	o.syncQueue(ctx)

	o.logger.Info().
		Str("job_id", job.ID.String()).
		Str("user_id", o.userID).
		Int("cost_credits", job.CostCredits).
		Int("retry_count", retryCount).
		Msg("orchestrator: job admitted")

	return o.CurrentJob(), nil
}

func (o *Orchestrator) releaseAdmission() {
	o.mu.Lock()
	o.admitting = false
	o.mu.Unlock()
}

// Cancel stops the tracked job. A job that has not reached the external
// service yet is cancelled locally without a remote call. Otherwise the
// remote service is asked; it may reject the request, in which case the
// error is returned and the job continues.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	job := o.current
	if job == nil || job.Terminal() {
		o.mu.Unlock()
		return domain.ErrNoActiveJob
	}

	externalID := job.ExternalJobID
	if externalID == "" {
		o.pollGen++
		job.Cancel(o.now())
		o.finishLocked(job)
		o.mu.Unlock()
		return nil
	}
	gen := o.pollGen
	o.mu.Unlock()

	if err := o.client.Cancel(ctx, externalID); err != nil {
		if gerr, ok := domain.AsGenerationError(err); ok && gerr.Code == domain.CodeCancellationRejected {
			o.logger.Info().
				Str("job_id", job.ID.String()).
				Msg("orchestrator: cancellation rejected, job continues")
		}
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.pollGen || o.current == nil || o.current.Terminal() {
		// A poll already resolved the job while the cancel was in flight.
		return nil
	}
	o.pollGen++
	o.current.Cancel(o.now())
	o.finishLocked(o.current)
	return nil
}

// Retry re-submits a failed job's request as a new job. It is refused when
// the job is not failed, the retry budget is exhausted, or the recorded
// error is not retryable.
func (o *Orchestrator) Retry(ctx context.Context) (*domain.Job, error) {
	o.mu.Lock()
	job := o.current
	if job == nil {
		o.mu.Unlock()
		return nil, domain.ErrNoActiveJob
	}
	if job.Status != domain.JobStatusFailed {
		o.mu.Unlock()
		return nil, domain.NewValidationError("only failed jobs can be retried", "")
	}
	if !job.CanRetry() {
		o.mu.Unlock()
		if job.RetryCount >= job.MaxRetries {
			return nil, domain.NewValidationError(
				fmt.Sprintf("retry limit of %d reached", job.MaxRetries),
				"submit the request as a new generation")
		}
		return nil, domain.NewValidationError("the recorded failure is not retryable", "adjust the request and submit again")
	}
	req := Request{
		Title:    job.Title,
		Prompt:   job.Prompt,
		Settings: job.Settings,
	}
	retryCount := job.RetryCount + 1
	o.mu.Unlock()

	return o.submit(ctx, req, retryCount)
}

// PauseQueue stops the queue from starting new jobs.
func (o *Orchestrator) PauseQueue(ctx context.Context) {
	o.queue.Pause()
	o.syncQueue(ctx)
}

// ResumeQueue restarts the queue and advances the next eligible entry.
func (o *Orchestrator) ResumeQueue(ctx context.Context) {
	o.queue.Resume()
	o.mu.Lock()
	o.maybeStartLocked()
	o.mu.Unlock()
	o.syncQueue(ctx)
}

// RemoveEntry removes one entry, cancelling its job best-effort if it is
// the tracked one. A rejected remote cancellation does not restore the
// entry; the underlying job may still finish asynchronously.
func (o *Orchestrator) RemoveEntry(ctx context.Context, entryID string) error {
	entry, err := o.queue.Dequeue(entryID)
	if err != nil {
		return err
	}
	o.abandon(ctx, entry)
	o.syncQueue(ctx)
	return nil
}

// ClearQueue removes every entry, requesting cancellation of active jobs
// best-effort.
func (o *Orchestrator) ClearQueue(ctx context.Context) {
	for _, entry := range o.queue.Clear() {
		o.abandon(ctx, entry)
	}
	o.syncQueue(ctx)
}

func (o *Orchestrator) abandon(ctx context.Context, entry *domain.QueueEntry) {
	job := entry.Job
	if job == nil || job.Terminal() {
		return
	}
	if job.ExternalJobID != "" {
		if err := o.client.Cancel(ctx, job.ExternalJobID); err != nil {
			o.logger.Warn().Err(err).
				Str("job_id", job.ID.String()).
				Msg("orchestrator: best-effort cancel failed during removal")
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil && o.current.ID == job.ID {
		o.pollGen++
		if o.entry != nil && o.entry.ID == entry.ID {
			o.entry = nil
		}
	}
	job.Cancel(o.now())
	o.persistLocked(job)
	if o.current != nil && o.current.ID == job.ID {
		o.notifyLocked(job)
	}
}

// maybeStartLocked promotes the next eligible entry and launches its
// remote submission. Callers hold o.mu.
func (o *Orchestrator) maybeStartLocked() {
	entry := o.queue.Advance()
	if entry == nil || entry.Job == nil {
		return
	}
	gen := o.pollGen
	go o.launch(entry, gen)
}

// launch submits the job to the external service and starts the poll
// loop. It runs outside the lock; gen detects a cancellation that raced
// the submission.
func (o *Orchestrator) launch(entry *domain.QueueEntry, gen int) {
	job := entry.Job

	promptText := job.Prompt
	if job.Settings.EnhancePrompt && o.enhancer != nil {
		if improved, err := o.enhancer.Enhance(o.ctx, promptText); err == nil && improved != "" {
			promptText = improved
		}
	}

	externalID, err := o.client.Submit(o.ctx, video.SubmitRequest{
		Prompt:              promptText,
		NegativePrompt:      job.Settings.NegativePrompt,
		Resolution:          job.Settings.Resolution,
		DurationSeconds:     job.Settings.DurationSeconds,
		Quality:             job.Settings.Quality,
		Format:              job.Settings.Format,
		AspectRatio:         job.Settings.AspectRatio,
		GuidanceScale:       job.Settings.GuidanceScale,
		Seed:                job.Settings.Seed,
		EnableUpscaling:     job.Settings.EnableUpscaling,
		EnableStabilization: job.Settings.EnableStabilization,
		RequestID:           job.ID.String(),
	})

	o.mu.Lock()
	if gen != o.pollGen || job.Terminal() {
		o.mu.Unlock()
		if err == nil && externalID != "" {
			// Cancelled while the submission was in flight; release the
			// orphaned remote job.
			if cerr := o.client.Cancel(o.ctx, externalID); cerr != nil {
				o.logger.Warn().Err(cerr).Msg("orchestrator: failed to cancel orphaned remote job")
			}
		}
		return
	}
	if err != nil {
		gerr, ok := domain.AsGenerationError(err)
		if !ok {
			gerr = domain.NewAPIError(err.Error(), true)
		}
		job.Fail(gerr, o.now())
		o.finishLocked(job)
		o.mu.Unlock()
		return
	}

	job.ExternalJobID = externalID
	o.persistLocked(job)
	o.mu.Unlock()

	o.logger.Info().
		Str("job_id", job.ID.String()).
		Str("external_job_id", externalID).
		Msg("orchestrator: job submitted to generation service")

	o.runPoll(job, externalID, gen)
}

// runPoll polls at a fixed interval until the job resolves, the ceiling is
// reached, or the poll generation is superseded. Polls never overlap: the
// next one is not issued before the previous response is handled.
func (o *Orchestrator) runPoll(job *domain.Job, externalID string, gen int) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			attempts++
			res, err := o.client.Poll(o.ctx, externalID)
			if !o.reconcile(job, gen, res, err) {
				return
			}
			if attempts >= o.cfg.MaxPollAttempts {
				o.resolveTimeout(job, gen, attempts)
				return
			}
		}
	}
}

// reconcile maps one poll response onto the job. It reports whether
// polling should continue. Stale responses, identified by a superseded
// generation, are discarded without touching the job.
func (o *Orchestrator) reconcile(job *domain.Job, gen int, res *video.PollResult, pollErr error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.pollGen || job.Terminal() {
		return false
	}

	if pollErr != nil {
		// Transient transport failures do not fail the job; the attempt
		// ceiling is the backstop.
		o.logger.Warn().Err(pollErr).
			Str("job_id", job.ID.String()).
			Msg("orchestrator: poll failed, will retry")
		return true
	}

	switch res.Status {
	case video.RemoteQueued:
		job.Advance(domain.JobStatusPending, domain.StageQueued, res.Progress, res.EstimatedTimeRemaining, o.now())
	case video.RemoteInitializing:
		job.Advance(domain.JobStatusProcessing, domain.StageInitializing, res.Progress, res.EstimatedTimeRemaining, o.now())
	case video.RemoteGenerating:
		job.Advance(domain.JobStatusProcessing, domain.StageGenerating, res.Progress, res.EstimatedTimeRemaining, o.now())
	case video.RemoteProcessing:
		job.Advance(domain.JobStatusProcessing, domain.StageProcessing, res.Progress, res.EstimatedTimeRemaining, o.now())
	case video.RemoteFinalizing:
		job.Advance(domain.JobStatusProcessing, domain.StageFinalizing, res.Progress, res.EstimatedTimeRemaining, o.now())
	case video.RemoteUploading:
		job.Advance(domain.JobStatusProcessing, domain.StageUploading, res.Progress, res.EstimatedTimeRemaining, o.now())
	case video.RemoteCompleted:
		job.Complete(res.VideoURL, res.ThumbnailURL, res.Metadata, o.now())
		o.finishLocked(job)
		return false
	case video.RemoteFailed:
		job.Fail(remoteFailure(res), o.now())
		o.finishLocked(job)
		return false
	case video.RemoteCancelled:
		job.Cancel(o.now())
		o.finishLocked(job)
		return false
	default:
		o.logger.Warn().
			Str("job_id", job.ID.String()).
			Str("status", string(res.Status)).
			Msg("orchestrator: unknown remote status ignored")
		return true
	}

	o.persistLocked(job)
	return true
}

func remoteFailure(res *video.PollResult) *domain.GenerationError {
	msg := res.ErrorMessage
	if msg == "" {
		msg = "generation failed"
	}
	switch res.ErrorCode {
	case "content_policy_violation":
		return domain.NewContentPolicyError(msg)
	case "quota_exceeded":
		gerr := domain.NewAPIError(msg, false)
		gerr.Suggestion = "reduce the duration or resolution"
		return gerr
	default:
		return domain.NewAPIError(msg, true)
	}
}

// resolveTimeout fails a job that exhausted the poll ceiling. This is a
// distinct failure from an external-reported one.
func (o *Orchestrator) resolveTimeout(job *domain.Job, gen, attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.pollGen || job.Terminal() {
		return
	}
	job.Fail(domain.NewTimeoutError(
		fmt.Sprintf("no result after %d status checks", attempts)), o.now())
	o.finishLocked(job)
}

// finishLocked settles a terminal job: releases its queue slot, persists,
// notifies exactly once, supersedes in-flight polls and advances the
// queue. Callers hold o.mu.
func (o *Orchestrator) finishLocked(job *domain.Job) {
	o.pollGen++
	if o.entry != nil && o.entry.Job != nil && o.entry.Job.ID == job.ID {
		o.queue.Release(o.entry.ID, job.Status)
		o.entry = nil
	}
	o.persistLocked(job)
	o.notifyLocked(job)

	o.logger.Info().
		Str("job_id", job.ID.String()).
		Str("status", string(job.Status)).
		Int("progress", job.Progress).
		Msg("orchestrator: job resolved")

	o.maybeStartLocked()
	go o.syncQueue(context.WithoutCancel(o.ctx))
}

func (o *Orchestrator) notifyLocked(job *domain.Job) {
	if o.notified || o.notify == nil {
		return
	}
	o.notified = true
	snapshot := *job
	go o.notify(&snapshot)
}

func (o *Orchestrator) persistLocked(job *domain.Job) {
	if o.jobs == nil {
		return
	}
	if err := o.jobs.UpdateLifecycle(o.ctx, job); err != nil {
		o.logger.Error().Err(err).
			Str("job_id", job.ID.String()).
			Msg("orchestrator: failed to persist job state")
	}
}

func (o *Orchestrator) syncQueue(ctx context.Context) {
	if o.queueStore == nil {
		return
	}
	snap := o.queue.Snapshot()
	// A drained idle queue has nothing worth restoring; drop the key
	// instead of hoarding empty snapshots.
	if len(snap.Entries) == 0 && snap.Status == domain.QueueIdle && snap.ObservedAverageSeconds == 0 {
		if err := o.queueStore.Delete(ctx, o.userID); err != nil {
			o.logger.Warn().Err(err).
				Str("user_id", o.userID).
				Msg("orchestrator: failed to delete queue snapshot")
		}
		return
	}
	if err := o.queueStore.Save(ctx, o.userID, snap); err != nil {
		o.logger.Warn().Err(err).
			Str("user_id", o.userID).
			Msg("orchestrator: failed to persist queue snapshot")
	}
}

func (o *Orchestrator) validateRequest(req Request) *domain.GenerationError {
	if strings.TrimSpace(req.Prompt) == "" {
		return domain.NewValidationError("prompt must not be empty", "describe the video you want to generate")
	}
	if strings.TrimSpace(req.Title) == "" {
		return domain.NewValidationError("title must not be empty", "give the video a short name")
	}
	if err := o.validate.Struct(req.Settings); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return settingsError(verrs[0])
		}
		return domain.NewValidationError("invalid generation settings", "")
	}
	return nil
}

func settingsError(fe validator.FieldError) *domain.GenerationError {
	switch fe.StructField() {
	case "Resolution":
		return domain.NewValidationError("resolution must be one of 480p, 720p, 1080p, 4k", "")
	case "DurationSeconds":
		return domain.NewValidationError("duration must be 5, 10 or 30 seconds", "pick one of the supported durations")
	case "Quality":
		return domain.NewValidationError("quality must be one of draft, balanced, high", "")
	case "GuidanceScale":
		return domain.NewValidationError("guidance scale must be between 1 and 20", "")
	default:
		return domain.NewValidationError(fmt.Sprintf("invalid setting %s", fe.StructField()), "")
	}
}
