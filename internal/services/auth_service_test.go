package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/hooksmedia/gatekeeper/internal/security"
	pkgauth "github.com/hooksmedia/gatekeeper/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "SecurePass123"

var (
	testHashOnce sync.Once
	testHash     string
)

func testPasswordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := pkgauth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("failed to hash test password: %v", err)
		}
		testHash = h
	})
	return testHash
}

func newTestUser(t *testing.T) *models.User {
	return &models.User{
		ID:           "user-1",
		Email:        "owner@example.com",
		PasswordHash: testPasswordHash(t),
		Name:         "Site Owner",
		Role:         "admin",
		Status:       "active",
	}
}

func testRequest() RequestContext {
	return RequestContext{
		IPAddress:   "203.0.113.7",
		UserAgent:   "test-agent",
		Fingerprint: "abcdef0123456789",
	}
}

type authFixture struct {
	service  *AuthService
	users    *MockUserRepository
	sessions *MockSessionRepository
	events   *MockEventRepository
	lockouts *MockLockoutRepository
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := testSecurityConfig()
	logger := newTestLogger()

	users := &MockUserRepository{}
	sessions := &MockSessionRepository{}
	events := &MockEventRepository{}
	lockoutRepo := &MockLockoutRepository{}

	audit := newTestAuditService(events)
	rateLimit := NewRateLimitService(events, cfg, logger)
	lockouts := NewLockoutService(lockoutRepo, events, audit, cfg, logger)
	tokens := security.NewTokenService(cfg.TokenSecret, cfg.SessionTimeout)
	chain := security.NewVerifyChain(tokens, sessions, cfg.LegacyTokenGrace, cfg.SessionTimeout)

	service := NewAuthService(users, sessions, events, rateLimit, lockouts, tokens, chain, audit, cfg, logger)

	return &authFixture{
		service:  service,
		users:    users,
		sessions: sessions,
		events:   events,
		lockouts: lockoutRepo,
	}
}

// ============================================================================
// Login Tests
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		assert.Equal(t, user.Email, email)
		return user, nil
	}

	var replaced *models.ActiveSession
	f.sessions.ReplaceFunc = func(ctx context.Context, session *models.ActiveSession) error {
		replaced = session
		return nil
	}

	var recorded []*models.SecurityEvent
	f.events.RecordFunc = func(ctx context.Context, event *models.SecurityEvent) error {
		recorded = append(recorded, event)
		return nil
	}

	result, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, user.Email, result.User.Email)
	assert.Equal(t, "admin", result.User.Role)
	assert.NotEmpty(t, result.Token)

	require.NotNil(t, replaced)
	assert.Equal(t, user.Email, replaced.Email)
	assert.NotEmpty(t, replaced.TokenID)

	require.NotEmpty(t, recorded)
	last := recorded[len(recorded)-1]
	assert.True(t, last.Success)
}

func TestAuthService_Login_MissingCredentials(t *testing.T) {
	f := newAuthFixture(t)

	var recorded *models.SecurityEvent
	f.events.RecordFunc = func(ctx context.Context, event *models.SecurityEvent) error {
		recorded = event
		return nil
	}

	_, err := f.service.Login(context.Background(), "owner@example.com", "", testRequest())

	assert.ErrorIs(t, err, models.ErrMissingCredentials)
	require.NotNil(t, recorded)
	assert.False(t, recorded.Success)
	require.NotNil(t, recorded.FailureReason)
	assert.Equal(t, "Missing credentials", *recorded.FailureReason)
}

func TestAuthService_Login_RateLimited(t *testing.T) {
	f := newAuthFixture(t)
	cfg := testSecurityConfig()

	f.events.CountAttemptsByIPFunc = func(ctx context.Context, ip string, since time.Time) (int, error) {
		return cfg.MaxRequestsPerIP, nil
	}

	_, err := f.service.Login(context.Background(), "owner@example.com", testPassword, testRequest())

	assert.ErrorIs(t, err, models.ErrRateLimited)

	var rateErr *models.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, cfg.RateLimitWindow, rateErr.RetryAfter)
}

func TestAuthService_Login_RateLimitFailsOpen(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.events.CountAttemptsByIPFunc = func(ctx context.Context, ip string, since time.Time) (int, error) {
		return 0, errors.New("connection refused")
	}
	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	result, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestAuthService_Login_AccountLocked(t *testing.T) {
	f := newAuthFixture(t)
	unlockTime := time.Now().Add(10 * time.Minute)

	f.lockouts.GetByEmailFunc = func(ctx context.Context, email string) (*models.AccountLockout, error) {
		return &models.AccountLockout{
			Email:      email,
			UnlockTime: unlockTime,
		}, nil
	}

	_, err := f.service.Login(context.Background(), "owner@example.com", testPassword, testRequest())

	assert.ErrorIs(t, err, models.ErrAccountLocked)

	var lockErr *models.LockedError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, unlockTime, lockErr.UnlockTime)
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var countedFailed bool
	f.events.CountFailedByEmailFunc = func(ctx context.Context, email string, since time.Time) (int, error) {
		countedFailed = true
		return 1, nil
	}

	_, err := f.service.Login(context.Background(), user.Email, "WrongPass999", testRequest())

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.True(t, countedFailed, "failed login should feed the lockout counter")
}

func TestAuthService_Login_UnknownUserSameError(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Login(context.Background(), "nobody@example.com", testPassword, testRequest())

	// Unknown account and wrong password are indistinguishable to the caller
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_Login_LocksAtThreshold(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)
	cfg := testSecurityConfig()

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}
	f.events.CountFailedByEmailFunc = func(ctx context.Context, email string, since time.Time) (int, error) {
		return cfg.MaxLoginAttempts, nil
	}

	var locked *models.AccountLockout
	f.lockouts.UpsertFunc = func(ctx context.Context, lockout *models.AccountLockout) error {
		locked = lockout
		return nil
	}

	_, err := f.service.Login(context.Background(), user.Email, "WrongPass999", testRequest())

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	require.NotNil(t, locked, "reaching the threshold should create a lockout")
	assert.Equal(t, user.Email, locked.Email)
	assert.Equal(t, cfg.MaxLoginAttempts, locked.FailedAttempts)
	assert.WithinDuration(t, time.Now().Add(cfg.LockoutDuration), locked.UnlockTime, 5*time.Second)
}

func TestAuthService_Login_DisabledAccount(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)
	user.Status = "disabled"

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	_, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())

	assert.ErrorIs(t, err, models.ErrAccountDisabled)
}

func TestAuthService_Login_NewDeviceFirstLogin(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}
	f.events.RecentSuccessfulIdentitiesFunc = func(ctx context.Context, email string, since time.Time, limit int) ([]models.KnownIdentity, error) {
		return []models.KnownIdentity{}, nil
	}

	var recorded []*models.SecurityEvent
	f.events.RecordFunc = func(ctx context.Context, event *models.SecurityEvent) error {
		recorded = append(recorded, event)
		return nil
	}

	result, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())

	require.NoError(t, err)
	assert.True(t, result.Security.IsNewDevice)
	assert.True(t, result.Security.IsNewIP)

	var sawNewDeviceEvent bool
	for _, e := range recorded {
		if e.EventType == models.EventTypeNewDeviceLogin {
			sawNewDeviceEvent = true
		}
	}
	assert.True(t, sawNewDeviceEvent)
}

func TestAuthService_Login_KnownDeviceNotFlagged(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)
	req := testRequest()

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}
	f.events.RecentSuccessfulIdentitiesFunc = func(ctx context.Context, email string, since time.Time, limit int) ([]models.KnownIdentity, error) {
		return []models.KnownIdentity{
			{DeviceFingerprint: req.Fingerprint, IPAddress: req.IPAddress},
		}, nil
	}

	result, err := f.service.Login(context.Background(), user.Email, testPassword, req)

	require.NoError(t, err)
	assert.False(t, result.Security.IsNewDevice)
	assert.False(t, result.Security.IsNewIP)
}

func TestAuthService_Login_RedactsFingerprint(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	result, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())

	require.NoError(t, err)
	assert.Equal(t, "abcdef01...", result.Security.DeviceFingerprint)
}

// ============================================================================
// Verify Tests
// ============================================================================

func TestAuthService_Verify_SignedTokenWithSession(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var stored *models.ActiveSession
	f.sessions.ReplaceFunc = func(ctx context.Context, session *models.ActiveSession) error {
		stored = session
		return nil
	}
	f.sessions.GetFunc = func(ctx context.Context, email, tokenID string) (*models.ActiveSession, error) {
		if stored != nil && stored.Email == email && stored.TokenID == tokenID {
			return stored, nil
		}
		return nil, models.ErrNotFound
	}

	login, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())
	require.NoError(t, err)

	result, err := f.service.Verify(context.Background(), login.Token, testRequest())

	require.NoError(t, err)
	assert.Equal(t, user.Email, result.Identity.Email)
	assert.False(t, result.Identity.Legacy)
	require.NotNil(t, result.Session)
}

func TestAuthService_Verify_ReplacedSessionInvalidatesToken(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var stored *models.ActiveSession
	f.sessions.ReplaceFunc = func(ctx context.Context, session *models.ActiveSession) error {
		stored = session
		return nil
	}
	f.sessions.GetFunc = func(ctx context.Context, email, tokenID string) (*models.ActiveSession, error) {
		if stored != nil && stored.Email == email && stored.TokenID == tokenID {
			return stored, nil
		}
		return nil, models.ErrNotFound
	}

	first, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())
	require.NoError(t, err)

	// Second login replaces the single per-account session
	_, err = f.service.Login(context.Background(), user.Email, testPassword, testRequest())
	require.NoError(t, err)

	_, err = f.service.Verify(context.Background(), first.Token, testRequest())
	assert.ErrorIs(t, err, models.ErrSessionInvalid)
}

func TestAuthService_Verify_LegacyToken(t *testing.T) {
	f := newAuthFixture(t)

	token := fmt.Sprintf("admin_%d_f8a2c91b", time.Now().UnixMilli())
	result, err := f.service.Verify(context.Background(), token, testRequest())

	require.NoError(t, err)
	assert.True(t, result.Identity.Legacy)
	assert.Equal(t, "admin", result.Identity.Role)
	assert.Nil(t, result.Session)
}

func TestAuthService_Verify_GarbageToken(t *testing.T) {
	f := newAuthFixture(t)

	var recorded *models.SecurityEvent
	f.events.RecordFunc = func(ctx context.Context, event *models.SecurityEvent) error {
		recorded = event
		return nil
	}

	_, err := f.service.Verify(context.Background(), "not-a-token", testRequest())

	assert.Error(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, models.EventTypeSessionVerify, recorded.EventType)
	assert.False(t, recorded.Success)
}

// ============================================================================
// Logout Tests
// ============================================================================

func TestAuthService_Logout_DeletesSession(t *testing.T) {
	f := newAuthFixture(t)
	user := newTestUser(t)

	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return user, nil
	}

	var deleted string
	f.sessions.DeleteFunc = func(ctx context.Context, email string) error {
		deleted = email
		return nil
	}

	login, err := f.service.Login(context.Background(), user.Email, testPassword, testRequest())
	require.NoError(t, err)

	f.service.Logout(context.Background(), login.Token)

	assert.Equal(t, user.Email, deleted)
}

func TestAuthService_Logout_InvalidTokenNoop(t *testing.T) {
	f := newAuthFixture(t)

	var deleteCalled bool
	f.sessions.DeleteFunc = func(ctx context.Context, email string) error {
		deleteCalled = true
		return nil
	}

	f.service.Logout(context.Background(), "garbage")

	assert.False(t, deleteCalled)
}
