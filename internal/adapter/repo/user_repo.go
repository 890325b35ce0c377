package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidforge/internal/domain"
)

// UserRepositoryPG implements domain.Entitlements over the users table.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a user repository backed by PostgreSQL.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// GetByID fetches a user by id.
func (r *UserRepositoryPG) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `
SELECT id, email, subscription_status, credits, created_at, updated_at
FROM users
WHERE id = $1;
`
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.Subscription,
		&user.Credits,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// HasActiveSubscription reports whether the user may generate at all.
func (r *UserRepositoryPG) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Subscription == domain.SubscriptionActive, nil
}

// CanGenerate reports whether the user passes the admission gate for a
// job of the given cost.
func (r *UserRepositoryPG) CanGenerate(ctx context.Context, userID string, costCredits int) (bool, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.CanSubmit(costCredits), nil
}

// DebitCredits reserves the job cost. The conditional update keeps the
// balance from going negative under concurrent admissions.
func (r *UserRepositoryPG) DebitCredits(ctx context.Context, userID string, costCredits int) error {
	query := `
UPDATE users
SET credits = credits - $2,
    updated_at = NOW()
WHERE id = $1 AND credits >= $2;
`
	tag, err := r.pool.Exec(ctx, query, userID, costCredits)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewPermissionError("insufficient credits")
	}
	return nil
}

var _ domain.Entitlements = (*UserRepositoryPG)(nil)
