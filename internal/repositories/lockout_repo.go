package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/database"
	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/jackc/pgx/v5"
)

// LockoutRepository handles account lockout records. The email unique
// constraint enforces the at-most-one-lock-per-account invariant at the
// storage boundary.
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// GetByEmail returns the account's lockout record, or models.ErrNotFound
func (r *LockoutRepository) GetByEmail(ctx context.Context, email string) (*models.AccountLockout, error) {
	query := `
		SELECT id, email, locked_by_ip, locked_at, unlock_time, failed_attempts, reason, manual
		FROM account_lockouts
		WHERE email = $1
	`

	var lockout models.AccountLockout
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&lockout.ID, &lockout.Email, &lockout.LockedByIP, &lockout.LockedAt,
		&lockout.UnlockTime, &lockout.FailedAttempts, &lockout.Reason, &lockout.Manual,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &lockout, nil
}

// Upsert creates or wholesale-replaces the account's lockout record
func (r *LockoutRepository) Upsert(ctx context.Context, lockout *models.AccountLockout) error {
	query := `
		INSERT INTO account_lockouts (email, locked_by_ip, locked_at, unlock_time, failed_attempts, reason, manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			locked_by_ip = EXCLUDED.locked_by_ip,
			locked_at = EXCLUDED.locked_at,
			unlock_time = EXCLUDED.unlock_time,
			failed_attempts = EXCLUDED.failed_attempts,
			reason = EXCLUDED.reason,
			manual = EXCLUDED.manual
	`

	_, err := r.db.Pool.Exec(ctx, query,
		lockout.Email, lockout.LockedByIP, lockout.LockedAt,
		lockout.UnlockTime, lockout.FailedAttempts, lockout.Reason, lockout.Manual,
	)
	return err
}

// Delete removes the account's lockout record, reporting whether one existed
func (r *LockoutRepository) Delete(ctx context.Context, email string) (bool, error) {
	query := `DELETE FROM account_lockouts WHERE email = $1`

	result, err := r.db.Pool.Exec(ctx, query, email)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// ListActive returns all lockouts that have not yet expired
func (r *LockoutRepository) ListActive(ctx context.Context, now time.Time) ([]*models.AccountLockout, error) {
	query := `
		SELECT id, email, locked_by_ip, locked_at, unlock_time, failed_attempts, reason, manual
		FROM account_lockouts
		WHERE unlock_time > $1
		ORDER BY locked_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockouts: %w", err)
	}

	return scanLockoutRows(rows)
}

// DeleteExpired removes lockouts whose unlock time has passed
func (r *LockoutRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM account_lockouts WHERE unlock_time <= $1`

	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired lockouts: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanLockoutRows(rows pgx.Rows) ([]*models.AccountLockout, error) {
	defer rows.Close()

	lockouts := make([]*models.AccountLockout, 0)

	for rows.Next() {
		var lockout models.AccountLockout
		err := rows.Scan(
			&lockout.ID, &lockout.Email, &lockout.LockedByIP, &lockout.LockedAt,
			&lockout.UnlockTime, &lockout.FailedAttempts, &lockout.Reason, &lockout.Manual,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lockout: %w", err)
		}
		lockouts = append(lockouts, &lockout)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lockout rows: %w", err)
	}

	return lockouts, nil
}
