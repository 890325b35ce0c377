package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidforge/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job and replaces its provisional id with the
// store-assigned one.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (user_id, title, prompt, settings, cost_credits, status, stage, progress, retry_count, max_retries, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id;
`
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	var id string
	if err := r.pool.QueryRow(ctx, query,
		job.UserID,
		job.Title,
		job.Prompt,
		settings,
		job.CostCredits,
		job.Status,
		job.Stage,
		job.Progress,
		job.RetryCount,
		job.MaxRetries,
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&id); err != nil {
		return err
	}
	job.ID = domain.PersistedID(id)
	return nil
}

// UpdateLifecycle writes the mutable lifecycle fields of a job.
func (r *JobRepositoryPG) UpdateLifecycle(ctx context.Context, job *domain.Job) error {
	query := `
UPDATE jobs
SET status = $2,
    stage = $3,
    progress = $4,
    eta_seconds = $5,
    retry_count = $6,
    error_json = $7,
    video_url = $8,
    thumbnail_url = $9,
    metadata = $10,
    external_job_id = $11,
    updated_at = $12
WHERE id = $1;
`
	var errJSON, metaJSON []byte
	if job.Error != nil {
		b, err := json.Marshal(job.Error)
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}
		errJSON = b
	}
	if job.Metadata != nil {
		b, err := json.Marshal(job.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metaJSON = b
	}

	_, err := r.pool.Exec(ctx, query,
		job.ID.String(),
		job.Status,
		nullableString(string(job.Stage)),
		job.Progress,
		job.EstimatedTimeRemaining,
		job.RetryCount,
		errJSON,
		nullableString(job.VideoURL),
		nullableString(job.ThumbnailURL),
		metaJSON,
		nullableString(job.ExternalJobID),
		job.UpdatedAt,
	)
	return err
}

// GetByID fetches a job by its store identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := selectJob + ` WHERE id = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// ListByUser returns the user's most recent jobs.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Job, error) {
	query := selectJob + ` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanJobs(rows)
}

// ListStale returns non-terminal jobs that have not been touched since
// olderThan, for the reconciler worker to adopt.
func (r *JobRepositoryPG) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Job, error) {
	query := selectJob + `
 WHERE status IN ('pending', 'processing') AND updated_at < $1
 ORDER BY updated_at ASC
 LIMIT $2;`
	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanJobs(rows)
}

const selectJob = `
SELECT id, user_id, title, prompt, settings, cost_credits, status, stage, progress, eta_seconds,
       retry_count, max_retries, error_json, video_url, thumbnail_url, metadata, external_job_id,
       created_at, updated_at
FROM jobs`

func (r *JobRepositoryPG) scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job           domain.Job
		id            string
		stage         *string
		settingsJSON  []byte
		errJSON       []byte
		metaJSON      []byte
		videoURL      *string
		thumbnailURL  *string
		externalJobID *string
	)
	if err := row.Scan(
		&id,
		&job.UserID,
		&job.Title,
		&job.Prompt,
		&settingsJSON,
		&job.CostCredits,
		&job.Status,
		&stage,
		&job.Progress,
		&job.EstimatedTimeRemaining,
		&job.RetryCount,
		&job.MaxRetries,
		&errJSON,
		&videoURL,
		&thumbnailURL,
		&metaJSON,
		&externalJobID,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	job.ID = domain.PersistedID(id)
	if stage != nil {
		job.Stage = domain.JobStage(*stage)
	}
	if videoURL != nil {
		job.VideoURL = *videoURL
	}
	if thumbnailURL != nil {
		job.ThumbnailURL = *thumbnailURL
	}
	if externalJobID != nil {
		job.ExternalJobID = *externalJobID
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &job.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	if len(errJSON) > 0 {
		var gerr domain.GenerationError
		if err := json.Unmarshal(errJSON, &gerr); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
		job.Error = &gerr
	}
	if len(metaJSON) > 0 {
		var meta domain.VideoMetadata
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		job.Metadata = &meta
	}
	return &job, nil
}

func (r *JobRepositoryPG) scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
