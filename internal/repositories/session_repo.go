package repositories

import (
	"context"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/database"
	"github.com/hooksmedia/gatekeeper/internal/models"
)

// SessionRepository handles active session records. The email primary key
// makes the per-account upsert the concurrency boundary: the last login
// wins and the previous session row (and so its token) is gone.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Replace upserts the account's single session row
func (r *SessionRepository) Replace(ctx context.Context, session *models.ActiveSession) error {
	query := `
		INSERT INTO active_sessions (email, token_id, ip_address, device_fingerprint, user_agent, created_at, last_activity, is_new_device, is_new_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email) DO UPDATE SET
			token_id = EXCLUDED.token_id,
			ip_address = EXCLUDED.ip_address,
			device_fingerprint = EXCLUDED.device_fingerprint,
			user_agent = EXCLUDED.user_agent,
			created_at = EXCLUDED.created_at,
			last_activity = EXCLUDED.last_activity,
			is_new_device = EXCLUDED.is_new_device,
			is_new_ip = EXCLUDED.is_new_ip
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.Email, session.TokenID, session.IPAddress, session.DeviceFingerprint,
		session.UserAgent, session.CreatedAt, session.LastActivity,
		session.IsNewDevice, session.IsNewIP,
	)
	return err
}

// Get returns the account's session only if the token ID matches, enforcing
// the single-session-per-account model
func (r *SessionRepository) Get(ctx context.Context, email, tokenID string) (*models.ActiveSession, error) {
	query := `
		SELECT email, token_id, ip_address, device_fingerprint, user_agent, created_at, last_activity, is_new_device, is_new_ip
		FROM active_sessions
		WHERE email = $1 AND token_id = $2
	`

	return r.scanSession(r.db.Pool.QueryRow(ctx, query, email, tokenID))
}

// GetByTokenID looks a session up by its token identifier alone; the final
// fallback of the verification chain.
func (r *SessionRepository) GetByTokenID(ctx context.Context, tokenID string) (*models.ActiveSession, error) {
	query := `
		SELECT email, token_id, ip_address, device_fingerprint, user_agent, created_at, last_activity, is_new_device, is_new_ip
		FROM active_sessions
		WHERE token_id = $1
	`

	return r.scanSession(r.db.Pool.QueryRow(ctx, query, tokenID))
}

// Touch updates a session's last-activity timestamp
func (r *SessionRepository) Touch(ctx context.Context, email, tokenID string, at time.Time) error {
	query := `
		UPDATE active_sessions SET last_activity = $3
		WHERE email = $1 AND token_id = $2
	`

	_, err := r.db.Pool.Exec(ctx, query, email, tokenID, at)
	return err
}

// Delete removes the account's session row; logout is best-effort so callers
// may ignore the error
func (r *SessionRepository) Delete(ctx context.Context, email string) error {
	query := `DELETE FROM active_sessions WHERE email = $1`

	_, err := r.db.Pool.Exec(ctx, query, email)
	return err
}

type sessionRowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SessionRepository) scanSession(row sessionRowScanner) (*models.ActiveSession, error) {
	var session models.ActiveSession
	err := row.Scan(
		&session.Email, &session.TokenID, &session.IPAddress, &session.DeviceFingerprint,
		&session.UserAgent, &session.CreatedAt, &session.LastActivity,
		&session.IsNewDevice, &session.IsNewIP,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}
