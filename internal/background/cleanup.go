package background

import (
	"context"
	"log/slog"
	"time"
)

// EventPurger removes aged security events
type EventPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutPurger removes lockout records whose unlock time has passed
type LockoutPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupManager periodically purges security events past the retention
// window and lockout records that have expired. Expired lockouts are also
// deleted lazily on check; the sweep catches accounts that never log in
// again.
type CleanupManager struct {
	events    EventPurger
	lockouts  LockoutPurger
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	events EventPurger,
	lockouts LockoutPurger,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		events:    events,
		lockouts:  lockouts,
		logger:    logger,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup performs one retention sweep
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	eventsDeleted, err := cm.events.DeleteOlderThan(cleanupCtx, now.Add(-cm.retention))
	if err != nil {
		cm.logger.Error("failed to purge aged security events", slog.Any("error", err))
	} else if eventsDeleted > 0 {
		cm.logger.Info("purged aged security events", slog.Int64("rows_deleted", eventsDeleted))
	}

	locksDeleted, err := cm.lockouts.DeleteExpired(cleanupCtx, now)
	if err != nil {
		cm.logger.Error("failed to purge expired lockouts", slog.Any("error", err))
	} else if locksDeleted > 0 {
		cm.logger.Info("purged expired lockouts", slog.Int64("rows_deleted", locksDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
