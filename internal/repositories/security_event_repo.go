package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/database"
	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/jackc/pgx/v5"
)

// SecurityEventRepository handles the append-only security event log
type SecurityEventRepository struct {
	db *database.DB
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Record appends one event. Events are immutable once written.
func (r *SecurityEventRepository) Record(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (event_type, email, ip_address, user_agent, device_fingerprint, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		event.EventType,
		event.Email,
		event.IPAddress,
		event.UserAgent,
		event.DeviceFingerprint,
		event.Success,
		event.FailureReason,
	)

	return err
}

// CountAttemptsByIP counts login_attempt events from an IP within a time window
func (r *SecurityEventRepository) CountAttemptsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM security_events
		WHERE event_type = $1 AND ip_address = $2 AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, models.EventTypeLoginAttempt, ipAddress, since).Scan(&count)
	return count, err
}

// CountFailedByEmail counts failed login_attempt events for an email within a time window
func (r *SecurityEventRepository) CountFailedByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM security_events
		WHERE event_type = $1 AND email = $2 AND success = false AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, models.EventTypeLoginAttempt, email, since).Scan(&count)
	return count, err
}

// RecentSuccessfulIdentities returns the fingerprint/IP pairs of the
// account's most recent successful login or verify events. Feeds new-device
// and new-IP detection.
func (r *SecurityEventRepository) RecentSuccessfulIdentities(ctx context.Context, email string, since time.Time, limit int) ([]models.KnownIdentity, error) {
	query := `
		SELECT device_fingerprint, ip_address FROM security_events
		WHERE email = $1 AND success = true
		  AND event_type IN ($2, $3)
		  AND created_at >= $4
		ORDER BY created_at DESC
		LIMIT $5
	`

	rows, err := r.db.Pool.Query(ctx, query,
		email, models.EventTypeLoginAttempt, models.EventTypeSessionVerify, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent identities: %w", err)
	}
	defer rows.Close()

	identities := make([]models.KnownIdentity, 0)
	for rows.Next() {
		var ki models.KnownIdentity
		if err := rows.Scan(&ki.DeviceFingerprint, &ki.IPAddress); err != nil {
			return nil, fmt.Errorf("failed to scan identity row: %w", err)
		}
		identities = append(identities, ki)
	}

	return identities, rows.Err()
}

// CountAttemptOutcomes returns total/success/failure counts for login_attempt
// events within a time window
func (r *SecurityEventRepository) CountAttemptOutcomes(ctx context.Context, since time.Time) (models.AttemptCounts, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success = true),
		       COUNT(*) FILTER (WHERE success = false)
		FROM security_events
		WHERE event_type = $1 AND created_at >= $2
	`

	var counts models.AttemptCounts
	err := r.db.Pool.QueryRow(ctx, query, models.EventTypeLoginAttempt, since).
		Scan(&counts.Total, &counts.Successful, &counts.Failed)
	return counts, err
}

// CountLockouts counts account_locked events within a time window, one per
// distinct account per lock transition
func (r *SecurityEventRepository) CountLockouts(ctx context.Context, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM security_events
		WHERE event_type = $1 AND created_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, models.EventTypeAccountLocked, since).Scan(&count)
	return count, err
}

// TopOffendingIPs returns the IPs with the most failed login attempts in the
// window, with each IP's most recent attempt time
func (r *SecurityEventRepository) TopOffendingIPs(ctx context.Context, since time.Time, limit int) ([]models.OffendingIP, error) {
	query := `
		SELECT ip_address, COUNT(*) AS failed_count, MAX(created_at) AS last_attempt
		FROM security_events
		WHERE event_type = $1 AND success = false AND created_at >= $2
		GROUP BY ip_address
		ORDER BY failed_count DESC, last_attempt DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, models.EventTypeLoginAttempt, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query offending IPs: %w", err)
	}
	defer rows.Close()

	offenders := make([]models.OffendingIP, 0)
	for rows.Next() {
		var o models.OffendingIP
		if err := rows.Scan(&o.IPAddress, &o.FailedCount, &o.LastAttempt); err != nil {
			return nil, fmt.Errorf("failed to scan offender row: %w", err)
		}
		offenders = append(offenders, o)
	}

	return offenders, rows.Err()
}

// List retrieves raw events with optional filters, newest first
func (r *SecurityEventRepository) List(ctx context.Context, filter models.EventFilter) ([]*models.SecurityEvent, error) {
	where, args := buildEventFilter(filter)

	query := fmt.Sprintf(`
		SELECT id, event_type, email, ip_address, user_agent, device_fingerprint, success, failure_reason, created_at
		FROM security_events
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanEventRows(rows)
}

// Count returns the number of events matching the filter, for pagination
func (r *SecurityEventRepository) Count(ctx context.Context, filter models.EventFilter) (int, error) {
	where, args := buildEventFilter(filter)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM security_events %s`, where)

	var count int
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

// DeleteOlderThan removes events past the retention window
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE created_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	return result.RowsAffected(), nil
}

func buildEventFilter(filter models.EventFilter) (string, []interface{}) {
	clauses := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if filter.Email != "" {
		add("email = $%d", filter.Email)
	}
	if filter.IPAddress != "" {
		add("ip_address = $%d", filter.IPAddress)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)

	for rows.Next() {
		var event models.SecurityEvent
		err := rows.Scan(
			&event.ID, &event.EventType, &event.Email, &event.IPAddress,
			&event.UserAgent, &event.DeviceFingerprint, &event.Success,
			&event.FailureReason, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}
