package models

import "time"

// RateLimitedError carries the retry hint for a 429 response. It unwraps to
// ErrRateLimited so errors.Is switches keep working.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// LockedError carries the unlock time for a 423 response. It unwraps to
// ErrAccountLocked.
type LockedError struct {
	UnlockTime time.Time
}

func (e *LockedError) Error() string { return ErrAccountLocked.Error() }

func (e *LockedError) Unwrap() error { return ErrAccountLocked }
