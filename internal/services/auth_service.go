package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hooksmedia/gatekeeper/internal/config"
	"github.com/hooksmedia/gatekeeper/internal/models"
	"github.com/hooksmedia/gatekeeper/internal/security"
	pkgauth "github.com/hooksmedia/gatekeeper/pkg/auth"
)

// UserRepository defines the account lookups the orchestrator needs
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore defines the active-session operations the orchestrator needs
type SessionStore interface {
	Replace(ctx context.Context, session *models.ActiveSession) error
	Get(ctx context.Context, email, tokenID string) (*models.ActiveSession, error)
	Touch(ctx context.Context, email, tokenID string, at time.Time) error
	Delete(ctx context.Context, email string) error
}

// IdentityHistory feeds new-device and new-IP detection
type IdentityHistory interface {
	RecentSuccessfulIdentities(ctx context.Context, email string, since time.Time, limit int) ([]models.KnownIdentity, error)
}

// RequestContext carries the client identity extracted from the HTTP request
type RequestContext struct {
	IPAddress   string
	UserAgent   string
	Fingerprint string
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// SecurityBlock is the per-login security summary exposed to the client
type SecurityBlock struct {
	IsNewDevice       bool   `json:"isNewDevice"`
	IsNewIP           bool   `json:"isNewIP"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	RemainingAttempts int    `json:"remainingAttempts"`
}

// LoginResult is the outcome of a successful authentication
type LoginResult struct {
	User     *UserResponse
	Token    string
	Security SecurityBlock
}

// VerifyResult is the outcome of a successful session verification
type VerifyResult struct {
	Identity *models.VerifiedIdentity
	Session  *models.ActiveSession
}

// AuthService composes the rate limiter, lockout manager, token service,
// and audit log into the authentication state machine
type AuthService struct {
	users     UserRepository
	sessions  SessionStore
	history   IdentityHistory
	rateLimit *RateLimitService
	lockouts  *LockoutService
	tokens    *security.TokenService
	chain     *security.VerifyChain
	audit     *AuditService
	config    config.SecurityConfig
	logger    *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	sessions SessionStore,
	history IdentityHistory,
	rateLimit *RateLimitService,
	lockouts *LockoutService,
	tokens *security.TokenService,
	chain *security.VerifyChain,
	audit *AuditService,
	cfg config.SecurityConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		history:   history,
		rateLimit: rateLimit,
		lockouts:  lockouts,
		tokens:    tokens,
		chain:     chain,
		audit:     audit,
		config:    cfg,
		logger:    logger,
	}
}

// Login runs the full authentication state machine for one request
func (s *AuthService) Login(ctx context.Context, email, password string, req RequestContext) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// 1. Credentials must be present at all
	if email == "" || password == "" {
		s.audit.RecordLoginAttempt(ctx, email, req.IPAddress, req.UserAgent, req.Fingerprint,
			false, "Missing credentials")
		return nil, models.ErrMissingCredentials
	}

	// 2. Per-IP rate limit over the sliding window
	limit := s.rateLimit.Check(ctx, req.IPAddress)
	if !limit.Allowed {
		s.audit.RecordLoginAttempt(ctx, email, req.IPAddress, req.UserAgent, req.Fingerprint,
			false, "Rate limit exceeded")
		return nil, &models.RateLimitedError{RetryAfter: s.config.RateLimitWindow}
	}

	// 3. Account lockout check, before credentials are even considered
	status, err := s.lockouts.Check(ctx, email)
	if err != nil {
		s.logger.Error("lockout check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if status.Locked {
		s.audit.RecordLoginAttempt(ctx, email, req.IPAddress, req.UserAgent, req.Fingerprint,
			false, "Account locked")
		return nil, &models.LockedError{UnlockTime: status.UnlockTime}
	}

	// 4. Credential verification. A failure here feeds the failed-login
	// counter and can cascade into a fresh lockout.
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.failCredentials(ctx, email, req)
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.failCredentials(ctx, email, req)
	}

	// 5. Account status check
	if user.Status != "active" {
		s.audit.RecordLoginAttempt(ctx, email, req.IPAddress, req.UserAgent, req.Fingerprint,
			false, "Account disabled")
		return nil, models.ErrAccountDisabled
	}

	// 6. New-device / new-IP detection against recent successful history
	isNewDevice, isNewIP := s.detectNewIdentity(ctx, email, req)

	// 7. Issue the token and replace the account's single session
	tokenID := uuid.New().String()
	token, err := s.tokens.Issue(models.SessionClaims{
		Email:             user.Email,
		Name:              user.Name,
		Role:              user.Role,
		DeviceFingerprint: req.Fingerprint,
		IPAddress:         req.IPAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: tokenID,
		},
	})
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	session := &models.ActiveSession{
		Email:             user.Email,
		TokenID:           tokenID,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.Fingerprint,
		UserAgent:         req.UserAgent,
		CreatedAt:         now,
		LastActivity:      now,
		IsNewDevice:       isNewDevice,
		IsNewIP:           isNewIP,
	}
	if err := s.sessions.Replace(ctx, session); err != nil {
		s.logger.Error("failed to replace active session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.RecordLoginAttempt(ctx, email, req.IPAddress, req.UserAgent, req.Fingerprint, true, "")

	if isNewDevice || isNewIP {
		s.audit.Record(ctx, &models.SecurityEvent{
			EventType:         models.EventTypeNewDeviceLogin,
			Email:             email,
			IPAddress:         req.IPAddress,
			UserAgent:         req.UserAgent,
			DeviceFingerprint: req.Fingerprint,
			Success:           true,
		})
	}

	remaining := limit.Remaining - 1
	if remaining < 0 {
		remaining = 0
	}

	return &LoginResult{
		User: &UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
		Token: token,
		Security: SecurityBlock{
			IsNewDevice:       isNewDevice,
			IsNewIP:           isNewIP,
			DeviceFingerprint: security.RedactFingerprint(req.Fingerprint),
			RemainingAttempts: remaining,
		},
	}, nil
}

// failCredentials records the failed attempt, feeds the lockout counter, and
// returns the generic credentials error
func (s *AuthService) failCredentials(ctx context.Context, email string, req RequestContext) error {
	s.audit.RecordLoginAttempt(ctx, email, req.IPAddress, req.UserAgent, req.Fingerprint,
		false, "Invalid credentials")

	if err := s.lockouts.RecordFailedLogin(ctx, email, req.IPAddress); err != nil {
		s.logger.Error("failed to record failed login", slog.Any("error", err))
	}

	return models.ErrInvalidCredentials
}

// detectNewIdentity reports whether the fingerprint and IP have been seen in
// the account's recent successful history. Both are new on an account's very
// first login. Detection is best-effort: a history read failure means the
// login proceeds without flags.
func (s *AuthService) detectNewIdentity(ctx context.Context, email string, req RequestContext) (bool, bool) {
	if s.history == nil {
		return false, false
	}

	since := time.Now().Add(-s.config.DeviceHistoryWindow)
	known, err := s.history.RecentSuccessfulIdentities(ctx, email, since, s.config.DeviceHistoryDepth)
	if err != nil {
		s.logger.Warn("device history lookup failed", slog.Any("error", err))
		return false, false
	}

	isNewDevice := true
	isNewIP := true
	for _, ki := range known {
		if ki.DeviceFingerprint == req.Fingerprint {
			isNewDevice = false
		}
		if ki.IPAddress == req.IPAddress {
			isNewIP = false
		}
	}

	return isNewDevice, isNewIP
}

// Verify runs the three-tier token verification: signed token first, then
// the legacy unsigned format, then a persisted-session lookup. A signed
// token is additionally only valid while a matching ActiveSession exists for
// the account, so a later login invalidates it.
func (s *AuthService) Verify(ctx context.Context, token string, req RequestContext) (*VerifyResult, error) {
	identity, err := s.chain.Verify(ctx, token)
	if err != nil {
		reason := err.Error()
		s.audit.Record(ctx, &models.SecurityEvent{
			EventType:         models.EventTypeSessionVerify,
			IPAddress:         req.IPAddress,
			UserAgent:         req.UserAgent,
			DeviceFingerprint: req.Fingerprint,
			Success:           false,
			FailureReason:     &reason,
		})
		return nil, err
	}

	var session *models.ActiveSession
	if !identity.Legacy {
		session, err = s.sessions.Get(ctx, identity.Email, identity.TokenID)
		if err != nil {
			reason := models.ErrSessionInvalid.Error()
			s.audit.Record(ctx, &models.SecurityEvent{
				EventType:         models.EventTypeSessionVerify,
				Email:             identity.Email,
				IPAddress:         req.IPAddress,
				UserAgent:         req.UserAgent,
				DeviceFingerprint: req.Fingerprint,
				Success:           false,
				FailureReason:     &reason,
			})
			return nil, models.ErrSessionInvalid
		}

		if err := s.sessions.Touch(ctx, identity.Email, identity.TokenID, time.Now()); err != nil {
			s.logger.Warn("failed to update session activity", slog.Any("error", err))
		}
	}

	s.audit.Record(ctx, &models.SecurityEvent{
		EventType:         models.EventTypeSessionVerify,
		Email:             identity.Email,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: req.Fingerprint,
		Success:           true,
	})

	return &VerifyResult{Identity: identity, Session: session}, nil
}

// Logout invalidates the caller's persisted session. Best-effort: storage
// errors are logged but never block the client from discarding its token.
func (s *AuthService) Logout(ctx context.Context, token string) {
	identity, err := s.chain.Verify(ctx, token)
	if err != nil || identity.Email == "" {
		return
	}

	if err := s.sessions.Delete(ctx, identity.Email); err != nil {
		s.logger.Warn("failed to delete session on logout",
			slog.String("email", identity.Email),
			slog.Any("error", err),
		)
	}
}
