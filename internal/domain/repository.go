package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job records. Create assigns the
// store identity; the provisional id is replaced in place.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	UpdateLifecycle(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Job, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*Job, error)
}

// Entitlements is the permission/credit gate checked before admission.
type Entitlements interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
	CanGenerate(ctx context.Context, userID string, costCredits int) (bool, error)
	DebitCredits(ctx context.Context, userID string, costCredits int) error
}

// QueueStateStore persists per-user queue snapshots so a restarted session
// can restore positions and the paused flag. Write-behind; the in-memory
// queue stays authoritative during a session.
type QueueStateStore interface {
	Save(ctx context.Context, userID string, snap QueueSnapshot) error
	Load(ctx context.Context, userID string) (*QueueSnapshot, error)
	Delete(ctx context.Context, userID string) error
}
