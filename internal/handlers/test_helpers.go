package handlers

import (
	"context"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/hooksmedia/gatekeeper/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, email, password string, req services.RequestContext) (*services.LoginResult, error)
	VerifyFunc func(ctx context.Context, token string, req services.RequestContext) (*services.VerifyResult, error)
	LogoutFunc func(ctx context.Context, token string)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, req services.RequestContext) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, req)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Verify(ctx context.Context, token string, req services.RequestContext) (*services.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token, req)
	}
	return nil, models.ErrSessionInvalid
}

func (m *MockAuthService) Logout(ctx context.Context, token string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, token)
	}
}

// MockAnalyticsService implements AnalyticsServiceInterface for testing
type MockAnalyticsService struct {
	OverviewFunc func(ctx context.Context, days int) (*models.SecurityOverview, error)
	LogsFunc     func(ctx context.Context, filter models.EventFilter) (*services.AuditLogPage, error)
}

func (m *MockAnalyticsService) Overview(ctx context.Context, days int) (*models.SecurityOverview, error) {
	if m.OverviewFunc != nil {
		return m.OverviewFunc(ctx, days)
	}
	return &models.SecurityOverview{WindowDays: days, SuccessRate: "0.00"}, nil
}

func (m *MockAnalyticsService) Logs(ctx context.Context, filter models.EventFilter) (*services.AuditLogPage, error) {
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, filter)
	}
	return &services.AuditLogPage{Events: []*models.SecurityEvent{}}, nil
}

// MockLockoutService implements LockoutServiceInterface for testing
type MockLockoutService struct {
	ListLockedFunc   func(ctx context.Context) ([]*models.AccountLockout, error)
	ManualLockFunc   func(ctx context.Context, email, reason string, duration time.Duration) error
	ManualUnlockFunc func(ctx context.Context, email string) error
}

func (m *MockLockoutService) ListLocked(ctx context.Context) ([]*models.AccountLockout, error) {
	if m.ListLockedFunc != nil {
		return m.ListLockedFunc(ctx)
	}
	return []*models.AccountLockout{}, nil
}

func (m *MockLockoutService) ManualLock(ctx context.Context, email, reason string, duration time.Duration) error {
	if m.ManualLockFunc != nil {
		return m.ManualLockFunc(ctx, email, reason, duration)
	}
	return nil
}

func (m *MockLockoutService) ManualUnlock(ctx context.Context, email string) error {
	if m.ManualUnlockFunc != nil {
		return m.ManualUnlockFunc(ctx, email)
	}
	return nil
}
