package models

import "time"

// AccountLockout is the at-most-one active lock per account. A record whose
// UnlockTime has passed is logically expired and treated as absent; readers
// delete it lazily on the next check.
type AccountLockout struct {
	ID             string    `db:"id"`
	Email          string    `db:"email"`
	LockedByIP     string    `db:"locked_by_ip"`
	LockedAt       time.Time `db:"locked_at"`
	UnlockTime     time.Time `db:"unlock_time"`
	FailedAttempts int       `db:"failed_attempts"`
	Reason         string    `db:"reason"`
	Manual         bool      `db:"manual"`
}

// Expired reports whether the lock has lapsed at the given instant
func (l *AccountLockout) Expired(now time.Time) bool {
	return !now.Before(l.UnlockTime)
}
