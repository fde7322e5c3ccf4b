package security

import (
	"context"
	"time"

	"github.com/hooksmedia/gatekeeper/internal/models"
)

// SessionLookup is the minimal read interface the persisted-session
// fallback needs.
type SessionLookup interface {
	GetByTokenID(ctx context.Context, tokenID string) (*models.ActiveSession, error)
}

// VerifyStrategy is one tier of the token verification chain. A strategy
// either produces an identity or returns an error, in which case the chain
// moves to the next tier.
type VerifyStrategy interface {
	Name() string
	Verify(ctx context.Context, token string) (*models.VerifiedIdentity, error)
}

// VerifyChain tries each strategy in order and returns the first identity
// produced. The order is part of the contract: signed tokens first, then the
// legacy unsigned format, then a persisted-session record as final fallback.
type VerifyChain struct {
	strategies []VerifyStrategy
}

// NewVerifyChain builds the standard three-tier chain.
func NewVerifyChain(ts *TokenService, sessions SessionLookup, legacyGrace, sessionTimeout time.Duration) *VerifyChain {
	return &VerifyChain{
		strategies: []VerifyStrategy{
			&signedStrategy{ts: ts},
			&legacyStrategy{grace: legacyGrace},
			&sessionStrategy{sessions: sessions, timeout: sessionTimeout},
		},
	}
}

// Verify runs the chain. On total failure it returns the first tier's error,
// which carries the most specific cause (bad signature, expiry).
func (c *VerifyChain) Verify(ctx context.Context, token string) (*models.VerifiedIdentity, error) {
	var firstErr error
	for _, s := range c.strategies {
		identity, err := s.Verify(ctx, token)
		if err == nil {
			return identity, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = models.ErrSessionInvalid
	}
	return nil, firstErr
}

type signedStrategy struct {
	ts *TokenService
}

func (s *signedStrategy) Name() string { return "signed" }

func (s *signedStrategy) Verify(_ context.Context, token string) (*models.VerifiedIdentity, error) {
	claims, err := s.ts.Verify(token)
	if err != nil {
		return nil, err
	}

	return &models.VerifiedIdentity{
		Email:             claims.Email,
		Name:              claims.Name,
		Role:              claims.Role,
		TokenID:           claims.ID,
		DeviceFingerprint: claims.DeviceFingerprint,
		IPAddress:         claims.IPAddress,
	}, nil
}

type legacyStrategy struct {
	grace time.Duration
}

func (s *legacyStrategy) Name() string { return "legacy" }

func (s *legacyStrategy) Verify(_ context.Context, token string) (*models.VerifiedIdentity, error) {
	return ParseLegacyToken(token, s.grace, time.Now())
}

type sessionStrategy struct {
	sessions SessionLookup
	timeout  time.Duration
}

func (s *sessionStrategy) Name() string { return "session" }

// Verify treats the raw token as a persisted session key. The server-side
// expiry check uses last activity, since legacy sessions have no exp claim.
func (s *sessionStrategy) Verify(ctx context.Context, token string) (*models.VerifiedIdentity, error) {
	if s.sessions == nil {
		return nil, models.ErrSessionInvalid
	}

	session, err := s.sessions.GetByTokenID(ctx, token)
	if err != nil {
		return nil, models.ErrSessionInvalid
	}

	if time.Since(session.LastActivity) > s.timeout {
		return nil, models.ErrSessionInvalid
	}

	return &models.VerifiedIdentity{
		Email:             session.Email,
		TokenID:           session.TokenID,
		DeviceFingerprint: session.DeviceFingerprint,
		IPAddress:         session.IPAddress,
		Legacy:            true,
	}, nil
}
