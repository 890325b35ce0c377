package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transitions may occur.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobStage is the fine-grained sub-state of a job. It is only meaningful
// while the job is pending or processing.
type JobStage string

const (
	StageQueued       JobStage = "queued"
	StageInitializing JobStage = "initializing"
	StageGenerating   JobStage = "generating"
	StageProcessing   JobStage = "processing"
	StageFinalizing   JobStage = "finalizing"
	StageUploading    JobStage = "uploading"
)

// JobID distinguishes a client-generated provisional identifier from one
// assigned by the store. Provisional ids exist only between submission and
// the first successful persist.
type JobID struct {
	Value       string
	Provisional bool
}

// NewProvisionalID creates a client-side id used before the store assigns
// the real one.
func NewProvisionalID() JobID {
	return JobID{Value: uuid.NewString(), Provisional: true}
}

// PersistedID wraps a store-assigned identifier.
func PersistedID(v string) JobID {
	return JobID{Value: v}
}

func (id JobID) String() string { return id.Value }

// MarshalJSON renders the id as its plain string value.
func (id JobID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.Value + `"`), nil
}

// GenerationSettings are immutable once a job is admitted. Validation tags
// mirror the admission preconditions.
type GenerationSettings struct {
	Resolution          string  `json:"resolution" validate:"required,oneof=480p 720p 1080p 4k"`
	DurationSeconds     int     `json:"duration_seconds" validate:"required,oneof=5 10 30"`
	Quality             string  `json:"quality" validate:"required,oneof=draft balanced high"`
	Format              string  `json:"format,omitempty"`
	AspectRatio         string  `json:"aspect_ratio,omitempty"`
	GuidanceScale       float64 `json:"guidance_scale,omitempty" validate:"omitempty,gte=1,lte=20"`
	Seed                *int64  `json:"seed,omitempty"`
	NegativePrompt      string  `json:"negative_prompt,omitempty"`
	EnhancePrompt       bool    `json:"enhance_prompt,omitempty"`
	EnableUpscaling     bool    `json:"enable_upscaling,omitempty"`
	EnableStabilization bool    `json:"enable_stabilization,omitempty"`
}

// VideoMetadata describes the completed output.
type VideoMetadata struct {
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	Format          string `json:"format,omitempty"`
	SizeBytes       int64  `json:"size_bytes,omitempty"`
}

// Job is one video generation request and its lifecycle record. Lifecycle
// fields are mutated only through the transition methods below; the
// orchestrator is the single writer.
type Job struct {
	ID          JobID
	UserID      string
	Title       string
	Prompt      string
	Settings    GenerationSettings
	CostCredits int

	Status                 JobStatus
	Stage                  JobStage
	Progress               int
	EstimatedTimeRemaining *int

	RetryCount int
	MaxRetries int
	Error      *GenerationError

	VideoURL      string
	ThumbnailURL  string
	Metadata      *VideoMetadata
	ExternalJobID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewJob admits a request as a pending/queued job with a provisional id.
func NewJob(userID, title, prompt string, settings GenerationSettings, costCredits, maxRetries int, now time.Time) *Job {
	return &Job{
		ID:          NewProvisionalID(),
		UserID:      userID,
		Title:       title,
		Prompt:      prompt,
		Settings:    settings,
		CostCredits: costCredits,
		Status:      JobStatusPending,
		Stage:       StageQueued,
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool { return j.Status.Terminal() }

// CanRetry reports whether a retry may be admitted for this job.
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed &&
		j.RetryCount < j.MaxRetries &&
		j.Error != nil && j.Error.Retryable
}

// Advance applies an intermediate status/stage observed from the external
// service. Terminal jobs are never modified. Progress is monotone while
// the job is active.
func (j *Job) Advance(status JobStatus, stage JobStage, progress int, eta *int, now time.Time) {
	if j.Terminal() || status.Terminal() {
		return
	}
	j.Status = status
	j.Stage = stage
	if progress > j.Progress {
		j.Progress = progress
	}
	j.EstimatedTimeRemaining = eta
	j.UpdatedAt = now
}

// Complete marks the job completed with its result. No-op once terminal.
func (j *Job) Complete(videoURL, thumbnailURL string, meta *VideoMetadata, now time.Time) {
	if j.Terminal() {
		return
	}
	j.Status = JobStatusCompleted
	j.Stage = ""
	j.Progress = 100
	j.EstimatedTimeRemaining = nil
	j.Error = nil
	j.VideoURL = videoURL
	j.ThumbnailURL = thumbnailURL
	j.Metadata = meta
	j.UpdatedAt = now
}

// Fail marks the job failed with the given error. No-op once terminal.
func (j *Job) Fail(gerr *GenerationError, now time.Time) {
	if j.Terminal() {
		return
	}
	j.Status = JobStatusFailed
	j.Stage = ""
	j.EstimatedTimeRemaining = nil
	j.Error = gerr
	j.UpdatedAt = now
}

// Cancel marks the job cancelled. No-op once terminal.
func (j *Job) Cancel(now time.Time) {
	if j.Terminal() {
		return
	}
	j.Status = JobStatusCancelled
	j.Stage = ""
	j.EstimatedTimeRemaining = nil
	j.UpdatedAt = now
}
