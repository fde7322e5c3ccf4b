package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/config"
	"github.com/hooksmedia/gatekeeper/internal/models"
)

// LockoutRepository defines the storage operations the lockout manager needs
type LockoutRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.AccountLockout, error)
	Upsert(ctx context.Context, lockout *models.AccountLockout) error
	Delete(ctx context.Context, email string) (bool, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.AccountLockout, error)
}

// FailedAttemptCounter counts an account's recent failed logins
type FailedAttemptCounter interface {
	CountFailedByEmail(ctx context.Context, email string, since time.Time) (int, error)
}

// LockoutStatus is the outcome of a lockout check
type LockoutStatus struct {
	Locked     bool
	UnlockTime time.Time
}

// LockoutService tracks failed attempts per account and manages the
// Unlocked -> Locked -> Unlocked state machine. Locks expire by time and are
// cleaned up lazily on the next check; administrators can force either
// transition.
type LockoutService struct {
	repo     LockoutRepository
	attempts FailedAttemptCounter
	audit    *AuditService
	config   config.SecurityConfig
	logger   *slog.Logger
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(repo LockoutRepository, attempts FailedAttemptCounter, audit *AuditService, cfg config.SecurityConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:     repo,
		attempts: attempts,
		audit:    audit,
		config:   cfg,
		logger:   logger,
	}
}

// Check reports whether the account is currently locked. An expired record
// is treated as absent and deleted as a side effect.
func (s *LockoutService) Check(ctx context.Context, email string) (LockoutStatus, error) {
	lockout, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return LockoutStatus{}, nil
		}
		return LockoutStatus{}, models.ErrStorageUnavailable
	}

	now := time.Now()
	if lockout.Expired(now) {
		// Lazy cleanup of the lapsed record
		if _, err := s.repo.Delete(ctx, email); err != nil {
			s.logger.Warn("failed to delete expired lockout",
				slog.String("email", email),
				slog.Any("error", err),
			)
		}
		return LockoutStatus{}, nil
	}

	return LockoutStatus{Locked: true, UnlockTime: lockout.UnlockTime}, nil
}

// RecordFailedLogin is invoked after every failed credential check. When the
// account's failed-attempt count within the window reaches the threshold,
// the account is locked and an account_locked event is appended.
func (s *LockoutService) RecordFailedLogin(ctx context.Context, email, ipAddress string) error {
	since := time.Now().Add(-s.config.RateLimitWindow)

	count, err := s.attempts.CountFailedByEmail(ctx, email, since)
	if err != nil {
		return err
	}

	if count < s.config.MaxLoginAttempts {
		return nil
	}

	now := time.Now()
	lockout := &models.AccountLockout{
		Email:          email,
		LockedByIP:     ipAddress,
		LockedAt:       now,
		UnlockTime:     now.Add(s.config.LockoutDuration),
		FailedAttempts: count,
		Reason:         "Too many failed login attempts",
	}

	if err := s.repo.Upsert(ctx, lockout); err != nil {
		return err
	}

	reason := lockout.Reason
	s.audit.RecordAccountAction(ctx, &models.SecurityEvent{
		EventType:     models.EventTypeAccountLocked,
		Email:         email,
		IPAddress:     ipAddress,
		Success:       false,
		FailureReason: &reason,
	}, map[string]string{
		"reason":          reason,
		"failed_attempts": strconv.Itoa(count),
	})

	s.logger.Warn("account locked",
		slog.String("email", email),
		slog.String("ip_address", ipAddress),
		slog.Int("failed_attempts", count),
	)

	return nil
}

// ManualLock is the administrative override that forces the Locked state
// regardless of failed-attempt count
func (s *LockoutService) ManualLock(ctx context.Context, email, reason string, duration time.Duration) error {
	now := time.Now()
	lockout := &models.AccountLockout{
		Email:      email,
		LockedAt:   now,
		UnlockTime: now.Add(duration),
		Reason:     reason,
		Manual:     true,
	}

	if err := s.repo.Upsert(ctx, lockout); err != nil {
		return err
	}

	s.audit.RecordAccountAction(ctx, &models.SecurityEvent{
		EventType:     models.EventTypeAccountLocked,
		Email:         email,
		Success:       false,
		FailureReason: &reason,
	}, map[string]string{
		"reason": reason,
		"manual": "true",
	})

	return nil
}

// ManualUnlock removes the account's lock. Idempotent: the unlock event is
// appended whether or not a lock existed, and models.ErrNotFound reports the
// no-lock case to the caller.
func (s *LockoutService) ManualUnlock(ctx context.Context, email string) error {
	existed, err := s.repo.Delete(ctx, email)
	if err != nil {
		return err
	}

	s.audit.RecordAccountAction(ctx, &models.SecurityEvent{
		EventType: models.EventTypeAccountUnlocked,
		Email:     email,
		Success:   true,
	}, map[string]string{"manual": "true"})

	if !existed {
		return models.ErrNotFound
	}
	return nil
}

// ListLocked returns all currently active lockouts
func (s *LockoutService) ListLocked(ctx context.Context) ([]*models.AccountLockout, error) {
	return s.repo.ListActive(ctx, time.Now())
}
