package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/config"
	"github.com/hooksmedia/gatekeeper/internal/models"
	pkglogger "github.com/hooksmedia/gatekeeper/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockSessionRepository implements SessionStore (and the verify chain's
// session lookup) for testing
type MockSessionRepository struct {
	ReplaceFunc      func(ctx context.Context, session *models.ActiveSession) error
	GetFunc          func(ctx context.Context, email, tokenID string) (*models.ActiveSession, error)
	GetByTokenIDFunc func(ctx context.Context, tokenID string) (*models.ActiveSession, error)
	TouchFunc        func(ctx context.Context, email, tokenID string, at time.Time) error
	DeleteFunc       func(ctx context.Context, email string) error
}

func (m *MockSessionRepository) Replace(ctx context.Context, session *models.ActiveSession) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, session)
	}
	return nil
}

func (m *MockSessionRepository) Get(ctx context.Context, email, tokenID string) (*models.ActiveSession, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, email, tokenID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) GetByTokenID(ctx context.Context, tokenID string) (*models.ActiveSession, error) {
	if m.GetByTokenIDFunc != nil {
		return m.GetByTokenIDFunc(ctx, tokenID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Touch(ctx context.Context, email, tokenID string, at time.Time) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, email, tokenID, at)
	}
	return nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, email string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, email)
	}
	return nil
}

// MockEventRepository implements every event-log view the services consume:
// EventWriter, AttemptCounter, FailedAttemptCounter, IdentityHistory, and
// EventReader
type MockEventRepository struct {
	RecordFunc                     func(ctx context.Context, event *models.SecurityEvent) error
	CountAttemptsByIPFunc          func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailedByEmailFunc         func(ctx context.Context, email string, since time.Time) (int, error)
	RecentSuccessfulIdentitiesFunc func(ctx context.Context, email string, since time.Time, limit int) ([]models.KnownIdentity, error)
	CountAttemptOutcomesFunc       func(ctx context.Context, since time.Time) (models.AttemptCounts, error)
	CountLockoutsFunc              func(ctx context.Context, since time.Time) (int, error)
	TopOffendingIPsFunc            func(ctx context.Context, since time.Time, limit int) ([]models.OffendingIP, error)
	ListFunc                       func(ctx context.Context, filter models.EventFilter) ([]*models.SecurityEvent, error)
	CountFunc                      func(ctx context.Context, filter models.EventFilter) (int, error)
}

func (m *MockEventRepository) Record(ctx context.Context, event *models.SecurityEvent) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, event)
	}
	return nil
}

func (m *MockEventRepository) CountAttemptsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountAttemptsByIPFunc != nil {
		return m.CountAttemptsByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockEventRepository) CountFailedByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountFailedByEmailFunc != nil {
		return m.CountFailedByEmailFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *MockEventRepository) RecentSuccessfulIdentities(ctx context.Context, email string, since time.Time, limit int) ([]models.KnownIdentity, error) {
	if m.RecentSuccessfulIdentitiesFunc != nil {
		return m.RecentSuccessfulIdentitiesFunc(ctx, email, since, limit)
	}
	return []models.KnownIdentity{}, nil
}

func (m *MockEventRepository) CountAttemptOutcomes(ctx context.Context, since time.Time) (models.AttemptCounts, error) {
	if m.CountAttemptOutcomesFunc != nil {
		return m.CountAttemptOutcomesFunc(ctx, since)
	}
	return models.AttemptCounts{}, nil
}

func (m *MockEventRepository) CountLockouts(ctx context.Context, since time.Time) (int, error) {
	if m.CountLockoutsFunc != nil {
		return m.CountLockoutsFunc(ctx, since)
	}
	return 0, nil
}

func (m *MockEventRepository) TopOffendingIPs(ctx context.Context, since time.Time, limit int) ([]models.OffendingIP, error) {
	if m.TopOffendingIPsFunc != nil {
		return m.TopOffendingIPsFunc(ctx, since, limit)
	}
	return []models.OffendingIP{}, nil
}

func (m *MockEventRepository) List(ctx context.Context, filter models.EventFilter) ([]*models.SecurityEvent, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.SecurityEvent{}, nil
}

func (m *MockEventRepository) Count(ctx context.Context, filter models.EventFilter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

// MockLockoutRepository implements LockoutRepository for testing
type MockLockoutRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.AccountLockout, error)
	UpsertFunc     func(ctx context.Context, lockout *models.AccountLockout) error
	DeleteFunc     func(ctx context.Context, email string) (bool, error)
	ListActiveFunc func(ctx context.Context, now time.Time) ([]*models.AccountLockout, error)
}

func (m *MockLockoutRepository) GetByEmail(ctx context.Context, email string) (*models.AccountLockout, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockLockoutRepository) Upsert(ctx context.Context, lockout *models.AccountLockout) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, lockout)
	}
	return nil
}

func (m *MockLockoutRepository) Delete(ctx context.Context, email string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, email)
	}
	return false, nil
}

func (m *MockLockoutRepository) ListActive(ctx context.Context, now time.Time) ([]*models.AccountLockout, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, now)
	}
	return []*models.AccountLockout{}, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuditService(repo EventWriter) *AuditService {
	logger := newTestLogger()
	return NewAuditService(repo, logger, pkglogger.NewAuditLogger(logger))
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		TokenSecret:         "test-secret-32-characters-long!!",
		RateLimitWindow:     15 * time.Minute,
		MaxRequestsPerIP:    10,
		MaxLoginAttempts:    5,
		LockoutDuration:     15 * time.Minute,
		SessionTimeout:      60 * time.Minute,
		LegacyTokenGrace:    24 * time.Hour,
		DeviceHistoryWindow: 30 * 24 * time.Hour,
		DeviceHistoryDepth:  5,
		EventRetention:      30 * 24 * time.Hour,
		CleanupInterval:     time.Hour,
	}
}
